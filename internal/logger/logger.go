package logger

import (
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the encoder and verbosity
type Options struct {
	Debug    bool
	Encoding string // console or json
}

// New returns a zap logger writing debug and info entries to stdout and
// warn, error and fatal entries to stderr
func New(opts Options) *zap.Logger {
	return zap.New(newCore(opts, os.Stdout, os.Stderr))
}

func newCore(opts Options, stdout, stderr io.Writer) zapcore.Core {
	// debug and info level enabler
	debugInfoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.DebugLevel || level == zapcore.InfoLevel
	})

	// info level enabler
	infoLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level == zapcore.InfoLevel
	})

	// warn, error and fatal level enabler
	warnErrorFatalLevel := zap.LevelEnablerFunc(func(level zapcore.Level) bool {
		return level >= zapcore.WarnLevel
	})

	// write syncers
	stdoutSyncer := zapcore.Lock(zapcore.AddSync(stdout))
	stderrSyncer := zapcore.Lock(zapcore.AddSync(stderr))

	encCfg := zap.NewProductionEncoderConfig()
	lowLevel := zapcore.LevelEnabler(infoLevel)
	if opts.Debug {
		encCfg = zap.NewDevelopmentEncoderConfig()
		lowLevel = debugInfoLevel
	}

	// tee core
	return zapcore.NewTee(
		zapcore.NewCore(newEncoder(opts.Encoding, encCfg), stdoutSyncer, lowLevel),
		zapcore.NewCore(newEncoder(opts.Encoding, encCfg), stderrSyncer, warnErrorFatalLevel),
	)
}

func newEncoder(encoding string, cfg zapcore.EncoderConfig) zapcore.Encoder {
	if encoding == "json" {
		return zapcore.NewJSONEncoder(cfg)
	}
	return zapcore.NewConsoleEncoder(cfg)
}
