// Package runner drives a benchmark over every image of a directory.
//
// A run is strictly sequential. Each image goes through decode, a timed
// detector call, normalization, annotation and an image write, and always
// ends as exactly one row of the result log, whatever fails along the way.
package runner

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/menta2k/inference-bench/internal/utils"
	"github.com/menta2k/inference-bench/pkg/annotate"
	"github.com/menta2k/inference-bench/pkg/geometry"
	"github.com/menta2k/inference-bench/pkg/invoke"
	"github.com/menta2k/inference-bench/pkg/resultlog"
	"github.com/menta2k/inference-bench/pkg/types"
)

// Run-level preconditions. Neither creates any output.
var (
	ErrMissingInputDir = errors.New("input directory does not exist")
	ErrNoInput         = errors.New("no images found in input directory")
)

// State is the lifecycle position of a Runner
type State int

const (
	StateIdle State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return "unknown"
	}
}

// ImageCodec decodes input images and encodes annotated ones
type ImageCodec interface {
	LoadImage(path string) (*image.NRGBA, error)
	SaveImage(img image.Image, path string) error
}

// Config describes one run
type Config struct {
	InputDir    string
	OutputDir   string
	LogPath     string
	CountColumn string
	Kind        types.Kind
}

// Summary reports what a run produced
type Summary struct {
	RunID     string
	Total     int
	OK        int
	Failed    map[types.Status]int
	OutputDir string
	LogPath   string
}

// Runner processes one directory once
type Runner struct {
	cfg       Config
	invoker   *invoke.Invoker
	codec     ImageCodec
	normalize geometry.Normalizer
	annotator annotate.Annotator
	logger    *zap.Logger
	state     State
}

// Option configures a Runner
type Option func(*Runner)

// WithAnnotator replaces the annotator picked from the config's kind
func WithAnnotator(a annotate.Annotator) Option {
	return func(r *Runner) { r.annotator = a }
}

// WithLogger sets the progress logger
func WithLogger(l *zap.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// New creates a runner in the idle state
func New(cfg Config, invoker *invoke.Invoker, codec ImageCodec, opts ...Option) *Runner {
	if cfg.CountColumn == "" {
		cfg.CountColumn = resultlog.DetectionsColumn
	}
	r := &Runner{
		cfg:       cfg,
		invoker:   invoker,
		codec:     codec,
		normalize: geometry.For(cfg.Kind),
		annotator: annotate.For(cfg.Kind),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// State returns where the runner is in its lifecycle
func (r *Runner) State() State {
	return r.state
}

// Run processes every eligible image in lexicographic order. It returns
// ErrMissingInputDir or ErrNoInput before touching the output directory. Once
// started it fails only if the result log cannot be written or ctx is done;
// images not yet attempted get no row.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	if r.state != StateIdle {
		return nil, errors.Errorf("runner is %s", r.state)
	}
	r.state = StateRunning
	defer func() { r.state = StateDone }()

	runID := uuid.NewString()
	logger := r.logger.With(zap.String("run_id", runID))

	inAbs, _ := filepath.Abs(r.cfg.InputDir)
	outAbs, _ := filepath.Abs(r.cfg.OutputDir)
	logger.Info("starting run", zap.String("input_dir", inAbs), zap.String("output_dir", outAbs))

	if !utils.DirExists(r.cfg.InputDir) {
		logger.Error("input directory does not exist", zap.String("input_dir", inAbs))
		return nil, errors.Wrap(ErrMissingInputDir, r.cfg.InputDir)
	}

	files, err := utils.ListImageFiles(r.cfg.InputDir)
	if err != nil {
		return nil, errors.Wrap(err, "list input directory")
	}
	logger.Info(fmt.Sprintf("found %d images", len(files)), zap.Strings("first", lo.Subset(files, 0, 5)))
	if len(files) == 0 {
		logger.Error("no images found", zap.String("input_dir", inAbs))
		return nil, errors.Wrap(ErrNoInput, r.cfg.InputDir)
	}

	if err := utils.EnsureDir(r.cfg.OutputDir); err != nil {
		return nil, errors.Wrap(err, "create output directory")
	}

	results, err := resultlog.Create(r.cfg.LogPath, r.cfg.CountColumn)
	if err != nil {
		return nil, err
	}
	defer results.Close()

	sum := &Summary{
		RunID:     runID,
		Failed:    map[types.Status]int{},
		OutputDir: r.cfg.OutputDir,
		LogPath:   r.cfg.LogPath,
	}

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", zap.Int("processed", i), zap.Int("remaining", len(files)-i))
			return sum, errors.Wrapf(err, "interrupted before %s", name)
		}
		row := r.process(ctx, logger, name)
		if err := results.Append(row); err != nil {
			return sum, errors.Wrapf(err, "record %s", name)
		}
		sum.Total++
		if row.Status == types.StatusOK {
			sum.OK++
		} else {
			sum.Failed[row.Status]++
		}
	}

	if err := results.Close(); err != nil {
		return sum, err
	}

	logger.Info("run finished",
		zap.Int("total", sum.Total),
		zap.Int("ok", sum.OK),
		zap.Int("failed", sum.Total-sum.OK),
		zap.String("images", outAbs),
		zap.String("log", r.cfg.LogPath))
	return sum, nil
}

// process handles one image and returns its log row
func (r *Runner) process(ctx context.Context, logger *zap.Logger, name string) types.ResultRow {
	item := types.ImageItem{Name: name, Path: filepath.Join(r.cfg.InputDir, name)}
	item.Image, item.Err = r.codec.LoadImage(item.Path)

	out := r.invoker.Invoke(ctx, item)
	switch out.Status {
	case types.StatusOK:
	case types.StatusUnreadableImage:
		logger.Warn(fmt.Sprintf("[SKIP] Cannot read image: %s", name), zap.Error(out.Err))
		return types.FailedRow(name, out.Status)
	default:
		logger.Warn(fmt.Sprintf("[ERROR] Inference failed on %s", name), zap.Error(out.Err))
		return types.FailedRow(name, out.Status)
	}

	preds := geometry.All(out.Raw, r.normalize)
	annotated := r.annotator.Annotate(item.Image, preds)

	outPath := filepath.Join(r.cfg.OutputDir, name)
	if err := r.codec.SaveImage(annotated, outPath); err != nil {
		_ = os.Remove(outPath)
		logger.Warn(fmt.Sprintf("[ERROR] Cannot write image: %s", name), zap.Error(err))
		return types.FailedRow(name, types.StatusWriteFailed)
	}

	count := len(out.Raw)
	logger.Info(fmt.Sprintf("[OK] %s | %s=%d | %.2f ms", name, r.countLabel(), count, out.LatencyMs),
		zap.Int("shapes", len(preds)))
	return types.OKRow(name, out.LatencyMs, count)
}

// countLabel names the count in progress lines
func (r *Runner) countLabel() string {
	if r.cfg.CountColumn == resultlog.MasksColumn {
		return "masks"
	}
	return "det"
}
