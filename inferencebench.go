// Package inferencebench benchmarks detection and segmentation models over a
// directory of images.
//
// For every image the configured detector is called once and timed, its
// predictions are drawn onto the image, the annotated copy is written to the
// output directory and one row is appended to a CSV timing log.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		inferencebench "github.com/menta2k/inference-bench"
//		"github.com/menta2k/inference-bench/internal/config"
//		"go.uber.org/zap"
//	)
//
//	func main() {
//		cfg, err := config.Load("bench.yaml", nil)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		bench, err := inferencebench.New(cfg, zap.NewExample())
//		if err != nil {
//			log.Fatal(err)
//		}
//		defer bench.Close()
//
//		summary, err := bench.Run(context.Background())
//		if err != nil {
//			log.Fatal(err)
//		}
//		log.Printf("%d/%d images ok, log at %s", summary.OK, summary.Total, summary.LogPath)
//	}
//
// The package consists of these components:
//
//  1. Geometry (pkg/geometry): turns raw prediction records into boxes or polygons
//  2. Annotate (pkg/annotate): draws boxes in place or blends polygon masks
//  3. Invoke (pkg/invoke): times a single detector call and isolates its failures
//  4. Runner (pkg/runner): walks the input directory and writes images and log rows
//  5. Result log (pkg/resultlog): the flushed-per-row CSV file
//
// Detectors are provided for the Roboflow hosted API (pkg/roboflow), local
// YOLO models through onnxruntime (pkg/onnx) and vision language models
// served by Ollama or llama.cpp (pkg/ollama, pkg/llamacpp, pkg/detection).
package inferencebench

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/menta2k/inference-bench/internal/config"
	"github.com/menta2k/inference-bench/pkg/client"
	"github.com/menta2k/inference-bench/pkg/detection"
	"github.com/menta2k/inference-bench/pkg/invoke"
	"github.com/menta2k/inference-bench/pkg/llamacpp"
	"github.com/menta2k/inference-bench/pkg/ollama"
	"github.com/menta2k/inference-bench/pkg/onnx"
	"github.com/menta2k/inference-bench/pkg/processing"
	"github.com/menta2k/inference-bench/pkg/roboflow"
	"github.com/menta2k/inference-bench/pkg/runner"
	"github.com/menta2k/inference-bench/pkg/types"
)

// Version of the inference bench library
const Version = "1.0.0"

// Bench wires a configured detector into a runner
type Bench struct {
	cfg      *config.Config
	detector client.Detector
	runner   *runner.Runner
	logger   *zap.Logger
}

// New validates cfg and builds the detector it names
func New(cfg *config.Config, logger *zap.Logger) (*Bench, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid configuration")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	det, err := NewDetector(cfg, logger)
	if err != nil {
		return nil, err
	}
	return NewWithDetector(cfg, det, logger), nil
}

// NewWithDetector builds a bench around an existing detector. cfg is not
// validated.
func NewWithDetector(cfg *config.Config, det client.Detector, logger *zap.Logger) *Bench {
	if logger == nil {
		logger = zap.NewNop()
	}

	processor := processing.NewProcessor()
	processor.JPEGQuality = cfg.Image.JPEGQuality

	inv := invoke.New(det, cfg.Run.ModelID,
		invoke.WithTimeout(cfg.Run.Timeout),
		invoke.WithLogger(logger.Named("invoke")))

	r := runner.New(runner.Config{
		InputDir:    cfg.Run.InputDir,
		OutputDir:   cfg.Run.OutputDir,
		LogPath:     cfg.LogPath(),
		CountColumn: cfg.Run.CountColumn,
		Kind:        KindFor(cfg.Run.Task),
	}, inv, processor, runner.WithLogger(logger))

	return &Bench{cfg: cfg, detector: det, runner: r, logger: logger}
}

// Run processes the input directory once
func (b *Bench) Run(ctx context.Context) (*runner.Summary, error) {
	b.logger.Info("inference bench",
		zap.String("version", Version),
		zap.String("variant", b.cfg.Run.Variant),
		zap.String("backend", b.cfg.Run.Backend),
		zap.String("model", b.cfg.Run.ModelID))
	return b.runner.Run(ctx)
}

// Close releases the detector if it holds resources
func (b *Bench) Close() error {
	if c, ok := b.detector.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// KindFor maps a task name to the prediction geometry it produces
func KindFor(task string) types.Kind {
	if task == config.TaskSegmentation {
		return types.KindPolygon
	}
	return types.KindBox
}

// NewDetector builds the backend selected by cfg.Run.Backend
func NewDetector(cfg *config.Config, logger *zap.Logger) (client.Detector, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Run.Backend {
	case config.BackendRoboflow:
		c, err := roboflow.NewClient(cfg.Roboflow.APIURL, cfg.Roboflow.APIKey, logger.Named("roboflow"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Roboflow client")
		}
		return c, nil
	case config.BackendONNX:
		labels, err := onnx.LoadLabels(cfg.ONNX.LabelsFile)
		if err != nil {
			return nil, err
		}
		d, err := onnx.NewDetector(onnx.Options{
			ModelPath:     cfg.Run.ModelID,
			LibraryPath:   cfg.ONNX.LibraryPath,
			Labels:        labels,
			InputSize:     cfg.ONNX.InputSize,
			ConfThreshold: float32(cfg.ONNX.ConfThreshold),
			IOUThreshold:  float32(cfg.ONNX.IOUThreshold),
		}, logger.Named("onnx"))
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Ollama.URL)
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Ollama client")
		}
		return detection.NewDetector(c, detection.Options{MaxDim: cfg.Ollama.MaxDim, Quality: cfg.Ollama.Quality}), nil
	case config.BackendLlamaCpp:
		c, err := llamacpp.NewClient(cfg.LlamaCpp.URL, logger.Named("llamacpp"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create llama.cpp client")
		}
		return detection.NewDetector(c, detection.Options{MaxDim: cfg.LlamaCpp.MaxDim, Quality: cfg.LlamaCpp.Quality}), nil
	default:
		return nil, errors.Errorf("unknown backend: %s", cfg.Run.Backend)
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
