package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForVariant(t *testing.T) {
	tests := []struct {
		variant     string
		task        string
		backend     string
		model       string
		logFile     string
		countColumn string
	}{
		{VariantRFDETR, TaskDetection, BackendRoboflow, "visdrone-lsbps/8", "timing_rfdetr.csv", "num_detections"},
		{VariantSAM, TaskSegmentation, BackendRoboflow, "sam-yssdo/2", "timing_rfseg.csv", "num_masks"},
		{VariantYOLO, TaskDetection, BackendONNX, "yolov8n.onnx", "yolo26_timing.csv", "num_detections"},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			cfg := ForVariant(tt.variant)
			assert.Equal(t, tt.task, cfg.Run.Task)
			assert.Equal(t, tt.backend, cfg.Run.Backend)
			assert.Equal(t, tt.model, cfg.Run.ModelID)
			assert.Equal(t, tt.logFile, cfg.Run.LogFile)
			assert.Equal(t, tt.countColumn, cfg.Run.CountColumn)
			assert.Equal(t, "data/raw_images/final_images", cfg.Run.InputDir)
			assert.Zero(t, cfg.Run.Timeout)
		})
	}
}

func TestLoadLayers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
run:
  variant: sam
  inputdir: /data/in
  timeout: 30s
image:
  jpegquality: 80
`), 0644))
	t.Setenv("CFG_ROBOFLOW_APIKEY", "secret")
	t.Setenv("CFG_IMAGE_JPEGQUALITY", "70")

	cfg, err := Load(path, map[string]any{"run.outputdir": "/data/out"})
	require.NoError(t, err)

	// preset of the variant chosen in the file
	assert.Equal(t, TaskSegmentation, cfg.Run.Task)
	assert.Equal(t, "num_masks", cfg.Run.CountColumn)
	// file
	assert.Equal(t, "/data/in", cfg.Run.InputDir)
	assert.Equal(t, 30*time.Second, cfg.Run.Timeout)
	// env beats file
	assert.Equal(t, 70, cfg.Image.JPEGQuality)
	assert.Equal(t, "secret", cfg.Roboflow.APIKey)
	// overrides
	assert.Equal(t, "/data/out", cfg.Run.OutputDir)
	assert.Equal(t, filepath.Join("/data/out", "timing_rfseg.csv"), cfg.LogPath())

	require.NoError(t, cfg.Validate())
}

func TestLoadJSONAndOverrideVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bench.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"onnx":{"confthreshold":0.4}}`), 0644))

	cfg, err := Load(path, map[string]any{"run.variant": VariantYOLO})
	require.NoError(t, err)

	assert.Equal(t, BackendONNX, cfg.Run.Backend)
	assert.Equal(t, 0.4, cfg.ONNX.ConfThreshold)
	assert.Equal(t, 0.7, cfg.ONNX.IOUThreshold)
	assert.Equal(t, 640, cfg.ONNX.InputSize)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	withKey := func(mut func(*Config)) *Config {
		cfg := Default()
		cfg.Roboflow.APIKey = "k"
		mut(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr string
	}{
		{"valid", withKey(func(*Config) {}), ""},
		{"missing api key", Default(), "roboflow.apikey"},
		{"unknown variant", withKey(func(c *Config) { c.Run.Variant = "detr" }), "run.variant"},
		{"negative timeout", withKey(func(c *Config) { c.Run.Timeout = -time.Second }), "run.timeout"},
		{"quality range", withKey(func(c *Config) { c.Image.JPEGQuality = 0 }), "image.jpegquality"},
		{"unknown backend", withKey(func(c *Config) { c.Run.Backend = "triton" }), "run.backend"},
		{"segmentation on onnx", withKey(func(c *Config) {
			c.Run.Task = TaskSegmentation
			c.Run.Backend = BackendONNX
		}), "segmentation"},
		{"onnx input size", withKey(func(c *Config) {
			c.Run.Backend = BackendONNX
			c.ONNX.InputSize = 600
		}), "onnx.inputsize"},
		{"empty input dir", withKey(func(c *Config) { c.Run.InputDir = "" }), "run.inputdir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
