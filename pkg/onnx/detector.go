package onnx

import (
	"context"
	"image"
	"runtime"
	"sync"
	"time"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/menta2k/inference-bench/pkg/processing"
	"github.com/menta2k/inference-bench/pkg/types"
)

// Options configures the local model session
type Options struct {
	ModelPath     string
	LibraryPath   string
	Labels        []string
	InputSize     int
	ConfThreshold float32
	IOUThreshold  float32
	InputName     string
	OutputName    string
}

// Detector runs a YOLOv8-layout model through onnxruntime. One session is
// created per Detector and reused for every image.
type Detector struct {
	mu        sync.Mutex
	opts      Options
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	anchors   int
	processor *processing.Processor
	logger    *zap.Logger
}

// NewDetector initializes the onnxruntime environment and loads the model
func NewDetector(opts Options, logger *zap.Logger) (*Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InputName == "" {
		opts.InputName = "images"
	}
	if opts.OutputName == "" {
		opts.OutputName = "output0"
	}
	if len(opts.Labels) == 0 {
		opts.Labels = COCOLabels
	}
	if opts.InputSize <= 0 {
		opts.InputSize = 640
	}

	if opts.LibraryPath != "" {
		ort.SetSharedLibraryPath(opts.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "initialize onnxruntime")
	}

	d, err := newSession(opts)
	if err != nil {
		ort.DestroyEnvironment()
		return nil, err
	}
	d.logger = logger
	d.processor = processing.NewProcessor()

	logger.Info("onnx session ready",
		zap.String("model", opts.ModelPath),
		zap.Int("input_size", opts.InputSize),
		zap.Int("classes", len(opts.Labels)),
		zap.Int("anchors", d.anchors))
	return d, nil
}

func newSession(opts Options) (*Detector, error) {
	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, errors.Wrap(err, "create session options")
	}
	defer options.Destroy()

	if err := options.SetIntraOpNumThreads(runtime.NumCPU()); err != nil {
		return nil, errors.Wrap(err, "set intra-op threads")
	}

	size := int64(opts.InputSize)
	anchors := NumAnchors(opts.InputSize)

	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, errors.Wrap(err, "create input tensor")
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(4+len(opts.Labels)), int64(anchors)))
	if err != nil {
		input.Destroy()
		return nil, errors.Wrap(err, "create output tensor")
	}

	session, err := ort.NewAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		options,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, errors.Wrapf(err, "create session for %s", opts.ModelPath)
	}

	return &Detector{
		opts:    opts,
		session: session,
		input:   input,
		output:  output,
		anchors: anchors,
	}, nil
}

// Infer decodes the image at imagePath and runs the model on it. modelID is
// only used for diagnostics; the model is fixed when the Detector is built.
func (d *Detector) Infer(ctx context.Context, imagePath, modelID string) (*types.Response, error) {
	img, err := d.processor.LoadImage(imagePath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	Preprocess(img, d.opts.InputSize, d.input.GetData())
	if err := d.session.Run(); err != nil {
		return nil, errors.Wrap(err, "model inference")
	}
	runTime := time.Since(start)

	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	size := float32(d.opts.InputSize)
	dets, err := Decode(d.output.GetData(), len(d.opts.Labels), d.anchors,
		float32(w)/size, float32(h)/size, d.opts.ConfThreshold)
	if err != nil {
		return nil, errors.Wrap(err, "decode output")
	}
	dets = NMS(dets, d.opts.IOUThreshold)

	d.logger.Debug("onnx inference",
		zap.String("model", modelID),
		zap.String("image", imagePath),
		zap.Duration("run", runTime),
		zap.Int("detections", len(dets)))

	body, err := Response(dets, d.opts.Labels, w, h)
	if err != nil {
		return nil, err
	}
	return &types.Response{Body: body}, nil
}

// Preprocess stretches img to size x size and writes it to dst as planar RGB
// scaled to [0,1]
func Preprocess(img image.Image, size int, dst []float32) {
	resized := resize.Resize(uint(size), uint(size), img, resize.Bilinear)
	b := resized.Bounds()
	channelSize := size * size
	for y := 0; y < size; y++ {
		offset := y * size
		for x := 0; x < size; x++ {
			i := offset + x
			r, g, bl, _ := resized.At(b.Min.X+x, b.Min.Y+y).RGBA()
			dst[i] = float32(r>>8) / 255.0
			dst[channelSize+i] = float32(g>>8) / 255.0
			dst[channelSize*2+i] = float32(bl>>8) / 255.0
		}
	}
}

// Close releases the session and the onnxruntime environment
func (d *Detector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.session != nil {
		d.session.Destroy()
		d.session = nil
	}
	if d.input != nil {
		d.input.Destroy()
		d.input = nil
	}
	if d.output != nil {
		d.output.Destroy()
		d.output = nil
	}
	return ort.DestroyEnvironment()
}
