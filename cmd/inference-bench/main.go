package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	inferencebench "github.com/menta2k/inference-bench"
	"github.com/menta2k/inference-bench/internal/config"
	"github.com/menta2k/inference-bench/internal/logger"
	"github.com/menta2k/inference-bench/pkg/runner"
	"github.com/menta2k/inference-bench/pkg/types"
)

func main() {
	var cfgPath, variant, in, outDir, backend, model string
	var timeout time.Duration
	var debug bool

	flag.StringVar(&cfgPath, "config", "", "optional config file (yaml or json)")
	flag.StringVar(&variant, "variant", "", "benchmark variant: rfdetr|sam|yolo (default rfdetr)")
	flag.StringVar(&in, "in", "", "input image directory (overrides the variant preset)")
	flag.StringVar(&outDir, "out", "", "output directory for annotated images and the timing log")
	flag.StringVar(&backend, "backend", "", "detector backend: roboflow|onnx|ollama|llamacpp")
	flag.StringVar(&model, "model", "", "model id, onnx model path or VLM model name")
	flag.DurationVar(&timeout, "timeout", 0, "per-image inference timeout, 0=unbounded")
	flag.BoolVar(&debug, "debug", false, "enable debug logging")
	flag.Parse()

	os.Exit(run(cfgPath))
}

// run executes one benchmark and returns the process exit code. A signal
// terminates the process; rows already written stay in the log.
func run(cfgPath string) int {
	cfg, err := config.Load(cfgPath, overrides())
	if err != nil {
		log.Printf("Failed to load configuration: %v", err)
		return 2
	}

	lg := logger.New(logger.Options{Debug: cfg.Logger.Debug, Encoding: cfg.Logger.Encoding})
	defer func() { _ = lg.Sync() }()

	bench, err := inferencebench.New(cfg, lg)
	if err != nil {
		lg.Error("failed to create benchmark", zap.Error(err))
		return 2
	}
	defer bench.Close()

	summary, err := bench.Run(context.Background())
	switch {
	case errors.Is(err, runner.ErrMissingInputDir), errors.Is(err, runner.ErrNoInput):
		lg.Warn("nothing to do", zap.String("input", cfg.Run.InputDir), zap.Error(err))
		return 0
	case err != nil:
		lg.Error("run failed", zap.Error(err))
		return 1
	}

	fmt.Printf("Processed %d images: %d ok", summary.Total, summary.OK)
	for _, status := range []types.Status{types.StatusUnreadableImage, types.StatusInvocationError, types.StatusWriteFailed} {
		if n := summary.Failed[status]; n > 0 {
			fmt.Printf(", %d %s", n, status)
		}
	}
	fmt.Printf("\nAnnotated images: %s\nTiming log:       %s\n", summary.OutputDir, summary.LogPath)
	return 0
}

// overrides maps the flags set on the command line to their config keys
func overrides() map[string]any {
	keys := map[string]string{
		"variant": "run.variant",
		"in":      "run.inputdir",
		"out":     "run.outputdir",
		"backend": "run.backend",
		"model":   "run.modelid",
		"timeout": "run.timeout",
		"debug":   "logger.debug",
	}

	out := map[string]any{}
	flag.Visit(func(f *flag.Flag) {
		if key, ok := keys[f.Name]; ok {
			out[key] = f.Value.String()
		}
	})
	return out
}
