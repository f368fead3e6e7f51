package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestTeeSplitsLevels(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := zap.New(newCore(Options{Encoding: "json"}, &stdout, &stderr))

	l.Debug("hidden")
	l.Info("progress", zap.String("image", "a.jpg"))
	l.Warn("inference failed")

	assert.Contains(t, stdout.String(), `"msg":"progress"`)
	assert.Contains(t, stdout.String(), `"image":"a.jpg"`)
	assert.NotContains(t, stdout.String(), "hidden")
	assert.NotContains(t, stdout.String(), "inference failed")
	assert.Contains(t, stderr.String(), "inference failed")
	assert.NotContains(t, stderr.String(), "progress")
}

func TestDebugEnablesDebugLevel(t *testing.T) {
	var stdout, stderr bytes.Buffer
	l := zap.New(newCore(Options{Debug: true}, &stdout, &stderr))

	l.Debug("request body")

	assert.Contains(t, stdout.String(), "request body")
	assert.Empty(t, stderr.String())
}
