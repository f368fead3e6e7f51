// Package invoke calls a detector for one image and records how long it took.
package invoke

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/menta2k/inference-bench/pkg/client"
	"github.com/menta2k/inference-bench/pkg/types"
)

// ErrPanic wraps a panic raised inside a detector
var ErrPanic = errors.New("detector panicked")

// Invoker runs a detector synchronously and turns every failure into an
// Outcome. It never returns an error and never panics.
type Invoker struct {
	detector client.Detector
	modelID  string
	timeout  time.Duration
	logger   *zap.Logger

	now func() time.Time
}

// Option configures an Invoker
type Option func(*Invoker)

// WithTimeout bounds each call with a context deadline. Zero means unbounded.
func WithTimeout(d time.Duration) Option {
	return func(i *Invoker) { i.timeout = d }
}

// WithLogger sets the logger used for invocation diagnostics
func WithLogger(l *zap.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithClock replaces the time source; the returned times must carry a
// monotonic reading for latencies to be meaningful
func WithClock(now func() time.Time) Option {
	return func(i *Invoker) { i.now = now }
}

// New creates an invoker for modelID
func New(detector client.Detector, modelID string, opts ...Option) *Invoker {
	i := &Invoker{
		detector: detector,
		modelID:  modelID,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke runs the detector on item. Unreadable items short-circuit without
// calling the detector.
func (i *Invoker) Invoke(ctx context.Context, item types.ImageItem) types.Outcome {
	if !item.Readable() {
		err := item.Err
		if err == nil {
			err = errors.Errorf("no image data for %s", item.Name)
		}
		return types.Outcome{Status: types.StatusUnreadableImage, Err: err}
	}

	start := i.now()
	resp, err := i.call(ctx, item.Path)
	elapsed := i.now().Sub(start)

	if err != nil {
		i.logger.Debug("inference failed",
			zap.String("image", item.Name),
			zap.String("model", i.modelID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return types.Outcome{Status: types.StatusInvocationError, Err: err}
	}

	return types.Outcome{
		Status:    types.StatusOK,
		Raw:       resp.Predictions(),
		LatencyMs: float64(elapsed) / float64(time.Millisecond),
	}
}

func (i *Invoker) call(ctx context.Context, path string) (resp *types.Response, err error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			resp = nil
			err = errors.Wrap(ErrPanic, fmt.Sprint(r))
		}
	}()

	resp, err = i.detector.Infer(ctx, path, i.modelID)
	if err != nil {
		return nil, errors.Wrapf(err, "infer %s", path)
	}
	if resp == nil {
		resp = &types.Response{}
	}
	return resp, nil
}
