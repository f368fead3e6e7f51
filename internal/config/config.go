package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// Variants
const (
	VariantRFDETR = "rfdetr"
	VariantSAM    = "sam"
	VariantYOLO   = "yolo"
)

// Tasks
const (
	TaskDetection    = "detection"
	TaskSegmentation = "segmentation"
)

// Backends
const (
	BackendRoboflow = "roboflow"
	BackendONNX     = "onnx"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// EnvPrefix marks environment variables read as configuration overrides.
// CFG_ROBOFLOW_APIKEY sets roboflow.apikey.
const EnvPrefix = "CFG_"

// Config holds the application configuration
type Config struct {
	Run      RunConfig      `koanf:"run"`
	Image    ImageConfig    `koanf:"image"`
	Roboflow RoboflowConfig `koanf:"roboflow"`
	ONNX     ONNXConfig     `koanf:"onnx"`
	Ollama   VLMConfig      `koanf:"ollama"`
	LlamaCpp VLMConfig      `koanf:"llamacpp"`
	Logger   LoggerConfig   `koanf:"logger"`
}

// RunConfig holds the batch parameters
type RunConfig struct {
	Variant     string        `koanf:"variant"`
	Task        string        `koanf:"task"`
	Backend     string        `koanf:"backend"`
	ModelID     string        `koanf:"modelid"`
	InputDir    string        `koanf:"inputdir"`
	OutputDir   string        `koanf:"outputdir"`
	LogFile     string        `koanf:"logfile"`
	CountColumn string        `koanf:"countcolumn"`
	Timeout     time.Duration `koanf:"timeout"`
}

// ImageConfig holds encoder settings for annotated output
type ImageConfig struct {
	JPEGQuality int `koanf:"jpegquality"`
}

// RoboflowConfig holds the hosted inference endpoint
type RoboflowConfig struct {
	APIURL string `koanf:"apiurl"`
	APIKey string `koanf:"apikey"`
}

// ONNXConfig holds the local model runtime settings
type ONNXConfig struct {
	LibraryPath   string  `koanf:"librarypath"`
	LabelsFile    string  `koanf:"labelsfile"`
	InputSize     int     `koanf:"inputsize"`
	ConfThreshold float64 `koanf:"confthreshold"`
	IOUThreshold  float64 `koanf:"iouthreshold"`
}

// VLMConfig holds the settings of a vision language model server
type VLMConfig struct {
	URL     string `koanf:"url"`
	MaxDim  int    `koanf:"maxdim"`
	Quality int    `koanf:"quality"`
}

// LoggerConfig holds logging settings
type LoggerConfig struct {
	Debug    bool   `koanf:"debug"`
	Encoding string `koanf:"encoding"`
}

// Default returns the rfdetr preset
func Default() *Config {
	return ForVariant(VariantRFDETR)
}

// ForVariant returns the preset for one of the benchmark variants. Unknown
// variants get the rfdetr preset with the variant name kept, so Validate can
// report it.
func ForVariant(variant string) *Config {
	cfg := &Config{
		Run: RunConfig{
			Variant:     variant,
			Task:        TaskDetection,
			Backend:     BackendRoboflow,
			ModelID:     "visdrone-lsbps/8",
			InputDir:    "data/raw_images/final_images",
			OutputDir:   "outputs/rfdetr_raw/rfdetr_final",
			LogFile:     "timing_rfdetr.csv",
			CountColumn: "num_detections",
		},
		Image: ImageConfig{JPEGQuality: 95},
		Roboflow: RoboflowConfig{
			APIURL: "https://serverless.roboflow.com",
		},
		ONNX: ONNXConfig{
			InputSize:     640,
			ConfThreshold: 0.25,
			IOUThreshold:  0.7,
		},
		Ollama: VLMConfig{
			URL:     "http://localhost:11434",
			MaxDim:  1024,
			Quality: 85,
		},
		LlamaCpp: VLMConfig{
			URL:     "http://localhost:8080",
			MaxDim:  1024,
			Quality: 85,
		},
		Logger: LoggerConfig{Encoding: "console"},
	}

	switch variant {
	case VariantSAM:
		cfg.Run.Task = TaskSegmentation
		cfg.Run.ModelID = "sam-yssdo/2"
		cfg.Run.OutputDir = "outputs/rfdetr_raw/sam_output"
		cfg.Run.LogFile = "timing_rfseg.csv"
		cfg.Run.CountColumn = "num_masks"
	case VariantYOLO:
		cfg.Run.Backend = BackendONNX
		cfg.Run.ModelID = "yolov8n.onnx"
		cfg.Run.OutputDir = "outputs/rfdetr_raw/yolo26"
		cfg.Run.LogFile = "yolo26_timing.csv"
	}
	return cfg
}

// Load builds the configuration in layers: the variant preset, then the
// optional file at path (yaml or json by extension), then CFG_ environment
// variables, then overrides (flat dotted keys, typically from CLI flags).
// The variant itself may come from any of the upper layers.
func Load(path string, overrides map[string]any) (*Config, error) {
	user := koanf.New(".")

	if path != "" {
		if err := user.Load(file.Provider(path), parserFor(path)); err != nil {
			return nil, errors.Wrapf(err, "load config file %s", path)
		}
	}

	if err := user.Load(env.ProviderWithValue(EnvPrefix, ".", func(s string, v string) (string, any) {
		key := strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".")
		return key, v
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load environment")
	}

	if len(overrides) > 0 {
		if err := user.Load(confmap.Provider(overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, "load overrides")
		}
	}

	variant := user.String("run.variant")
	if variant == "" {
		variant = VariantRFDETR
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(ForVariant(variant).flatten(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "load defaults")
	}
	if err := k.Merge(user); err != nil {
		return nil, errors.Wrap(err, "merge config")
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return &cfg, nil
}

func parserFor(path string) koanf.Parser {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return json.Parser()
	}
	return yaml.Parser()
}

// flatten lists every field under its dotted koanf key
func (c *Config) flatten() map[string]any {
	return map[string]any{
		"run.variant":        c.Run.Variant,
		"run.task":           c.Run.Task,
		"run.backend":        c.Run.Backend,
		"run.modelid":        c.Run.ModelID,
		"run.inputdir":       c.Run.InputDir,
		"run.outputdir":      c.Run.OutputDir,
		"run.logfile":        c.Run.LogFile,
		"run.countcolumn":    c.Run.CountColumn,
		"run.timeout":        c.Run.Timeout.String(),
		"image.jpegquality":  c.Image.JPEGQuality,
		"roboflow.apiurl":    c.Roboflow.APIURL,
		"roboflow.apikey":    c.Roboflow.APIKey,
		"onnx.librarypath":   c.ONNX.LibraryPath,
		"onnx.labelsfile":    c.ONNX.LabelsFile,
		"onnx.inputsize":     c.ONNX.InputSize,
		"onnx.confthreshold": c.ONNX.ConfThreshold,
		"onnx.iouthreshold":  c.ONNX.IOUThreshold,
		"ollama.url":         c.Ollama.URL,
		"ollama.maxdim":      c.Ollama.MaxDim,
		"ollama.quality":     c.Ollama.Quality,
		"llamacpp.url":       c.LlamaCpp.URL,
		"llamacpp.maxdim":    c.LlamaCpp.MaxDim,
		"llamacpp.quality":   c.LlamaCpp.Quality,
		"logger.debug":       c.Logger.Debug,
		"logger.encoding":    c.Logger.Encoding,
	}
}

// LogPath returns the result log location inside the output directory
func (c *Config) LogPath() string {
	if filepath.IsAbs(c.Run.LogFile) {
		return c.Run.LogFile
	}
	return filepath.Join(c.Run.OutputDir, c.Run.LogFile)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !lo.Contains([]string{VariantRFDETR, VariantSAM, VariantYOLO}, c.Run.Variant) {
		return errors.Errorf("run.variant %q must be one of rfdetr, sam, yolo", c.Run.Variant)
	}

	if !lo.Contains([]string{TaskDetection, TaskSegmentation}, c.Run.Task) {
		return errors.Errorf("run.task %q must be detection or segmentation", c.Run.Task)
	}

	if c.Run.InputDir == "" {
		return errors.New("run.inputdir cannot be empty")
	}

	if c.Run.OutputDir == "" {
		return errors.New("run.outputdir cannot be empty")
	}

	if c.Run.LogFile == "" {
		return errors.New("run.logfile cannot be empty")
	}

	if c.Run.CountColumn == "" {
		return errors.New("run.countcolumn cannot be empty")
	}

	if c.Run.ModelID == "" {
		return errors.New("run.modelid cannot be empty")
	}

	if c.Run.Timeout < 0 {
		return errors.New("run.timeout cannot be negative")
	}

	if c.Image.JPEGQuality < 1 || c.Image.JPEGQuality > 100 {
		return errors.New("image.jpegquality must be between 1 and 100")
	}

	if !lo.Contains([]string{"console", "json"}, c.Logger.Encoding) {
		return errors.Errorf("logger.encoding %q must be console or json", c.Logger.Encoding)
	}

	if c.Run.Task == TaskSegmentation && c.Run.Backend != BackendRoboflow {
		return errors.Errorf("backend %s cannot produce segmentation masks", c.Run.Backend)
	}

	switch c.Run.Backend {
	case BackendRoboflow:
		if c.Roboflow.APIURL == "" {
			return errors.New("roboflow.apiurl cannot be empty")
		}
		if c.Roboflow.APIKey == "" {
			return errors.Errorf("roboflow.apikey is required (set %sROBOFLOW_APIKEY)", EnvPrefix)
		}
	case BackendONNX:
		if c.ONNX.InputSize <= 0 || c.ONNX.InputSize%32 != 0 {
			return errors.New("onnx.inputsize must be a positive multiple of 32")
		}
		if c.ONNX.ConfThreshold < 0 || c.ONNX.ConfThreshold > 1 {
			return errors.New("onnx.confthreshold must be between 0 and 1")
		}
		if c.ONNX.IOUThreshold < 0 || c.ONNX.IOUThreshold > 1 {
			return errors.New("onnx.iouthreshold must be between 0 and 1")
		}
	case BackendOllama:
		if c.Ollama.URL == "" {
			return errors.New("ollama.url cannot be empty")
		}
	case BackendLlamaCpp:
		if c.LlamaCpp.URL == "" {
			return errors.New("llamacpp.url cannot be empty")
		}
	default:
		return errors.Errorf("run.backend %q must be one of roboflow, onnx, ollama, llamacpp", c.Run.Backend)
	}

	return nil
}
