// Package config loads engine settings from defaults, an optional YAML file
// and OCR_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/ocr-engine/internal/logger"
)

// Recognition backends.
const (
	BackendNative    = "native"
	BackendTesseract = "tesseract"
)

// Config is the full engine configuration.
type Config struct {
	Detection   DetectionConfig   `yaml:"detection"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Log         LogConfig         `yaml:"log"`
	Models      ModelPaths        `yaml:"models"`
}

// DetectionConfig tunes the detection post-processing.
type DetectionConfig struct {
	// MaxSideLen caps the longer image side before inference. 0 disables it.
	MaxSideLen int `yaml:"max_side_len"`

	// BinaryThreshold is the probability above which a map pixel is text.
	BinaryThreshold float64 `yaml:"binary_threshold"`

	// BoxThreshold is the minimum mean probability of a kept region.
	BoxThreshold float64 `yaml:"box_threshold"`

	// NMSThreshold is the IoU above which the weaker of two boxes is dropped.
	NMSThreshold float64 `yaml:"nms_threshold"`

	// BorderSize expands every box on each side, in detection-map pixels.
	BorderSize int `yaml:"border_size"`

	// MinBoxSize drops boxes whose shorter side is below it.
	MinBoxSize int `yaml:"min_box_size"`

	MergeBoxes     bool `yaml:"merge_boxes"`
	MergeThreshold int  `yaml:"merge_threshold"`

	// Contrast in percent (-100..100) applied before detection. 0 disables it.
	Contrast float64 `yaml:"contrast"`

	// DenoiseSigma is the Gaussian blur radius applied before detection.
	DenoiseSigma float64 `yaml:"denoise_sigma"`
}

// RecognitionConfig tunes cropping and decoding.
type RecognitionConfig struct {
	Backend         string  `yaml:"backend"`
	MinScore        float64 `yaml:"min_score"`
	PunctMinScore   float64 `yaml:"punct_min_score"`
	AutoInvert      bool    `yaml:"auto_invert"`
	MaxWidth        int     `yaml:"max_width"`
	CaseInsensitive bool    `yaml:"case_insensitive"`
	Language        string  `yaml:"language"`
}

// RuntimeConfig sizes the process-wide worker pool.
type RuntimeConfig struct {
	// Workers is the pool size requested by an engine. The pool is shared
	// by every engine in the process and only grows: each creation raises
	// it to at least Workers, and a smaller value never shrinks it.
	// 0 means runtime.NumCPU().
	Workers int `yaml:"workers"`
}

// LogConfig mirrors logger.LogConfig with YAML tags.
type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	TimeFormat string `yaml:"time_format"`
	Output     string `yaml:"output"`
}

// ModelPaths are default artifact locations used by the CLI and server.
type ModelPaths struct {
	Det  string `yaml:"det"`
	Rec  string `yaml:"rec"`
	Dict string `yaml:"dict"`
}

// Default returns the built-in configuration.
func Default() Config {
	lc := logger.DefaultConfig()
	return Config{
		Detection: DetectionConfig{
			MaxSideLen:      960,
			BinaryThreshold: 0.3,
			BoxThreshold:    0.6,
			NMSThreshold:    0.5,
			BorderSize:      2,
			MinBoxSize:      5,
			MergeThreshold:  1,
		},
		Recognition: RecognitionConfig{
			Backend:       BackendNative,
			MinScore:      0.5,
			PunctMinScore: 0.1,
			AutoInvert:    true,
			MaxWidth:      2048,
			Language:      "eng",
		},
		Runtime: RuntimeConfig{Workers: runtime.NumCPU()},
		Log: LogConfig{
			Level:      lc.Level,
			Format:     lc.Format,
			TimeFormat: lc.TimeFormat,
			Output:     lc.Output,
		},
		Models: ModelPaths{
			Det:  "models/det.json",
			Rec:  "models/rec.json",
			Dict: "models/keys.txt",
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.Log.Level = getEnv("OCR_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("OCR_LOG_FORMAT", c.Log.Format)
	c.Log.TimeFormat = getEnv("OCR_LOG_TIME_FORMAT", c.Log.TimeFormat)
	c.Log.Output = getEnv("OCR_LOG_OUTPUT", c.Log.Output)

	c.Models.Det = getEnv("OCR_DET_MODEL", c.Models.Det)
	c.Models.Rec = getEnv("OCR_REC_MODEL", c.Models.Rec)
	c.Models.Dict = getEnv("OCR_DICT", c.Models.Dict)

	c.Recognition.Backend = getEnv("OCR_REC_BACKEND", c.Recognition.Backend)
	c.Recognition.Language = getEnv("OCR_REC_LANGUAGE", c.Recognition.Language)

	var err error
	if c.Runtime.Workers, err = getEnvInt("OCR_WORKERS", c.Runtime.Workers); err != nil {
		return err
	}
	if c.Detection.MaxSideLen, err = getEnvInt("OCR_DET_MAX_SIDE_LEN", c.Detection.MaxSideLen); err != nil {
		return err
	}
	if c.Detection.BorderSize, err = getEnvInt("OCR_DET_BORDER_SIZE", c.Detection.BorderSize); err != nil {
		return err
	}
	if c.Detection.BoxThreshold, err = getEnvFloat("OCR_DET_BOX_THRESH", c.Detection.BoxThreshold); err != nil {
		return err
	}
	if c.Detection.NMSThreshold, err = getEnvFloat("OCR_DET_NMS_THRESH", c.Detection.NMSThreshold); err != nil {
		return err
	}
	if c.Recognition.MinScore, err = getEnvFloat("OCR_REC_MIN_SCORE", c.Recognition.MinScore); err != nil {
		return err
	}
	return nil
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	d := c.Detection
	if d.MaxSideLen < 0 {
		return fmt.Errorf("detection.max_side_len must be >= 0")
	}
	if !unit(d.BinaryThreshold) || !unit(d.BoxThreshold) || !unit(d.NMSThreshold) {
		return fmt.Errorf("detection thresholds must be within [0,1]")
	}
	if d.BorderSize < 0 || d.MinBoxSize < 0 || d.MergeThreshold < 0 {
		return fmt.Errorf("detection sizes must be >= 0")
	}
	if d.Contrast < -100 || d.Contrast > 100 {
		return fmt.Errorf("detection.contrast must be within [-100,100]")
	}
	if d.DenoiseSigma < 0 {
		return fmt.Errorf("detection.denoise_sigma must be >= 0")
	}

	r := c.Recognition
	switch r.Backend {
	case BackendNative, BackendTesseract:
	default:
		return fmt.Errorf("recognition.backend %q is not one of %s, %s", r.Backend, BackendNative, BackendTesseract)
	}
	if !unit(r.MinScore) || !unit(r.PunctMinScore) {
		return fmt.Errorf("recognition scores must be within [0,1]")
	}
	if r.MaxWidth <= 0 {
		return fmt.Errorf("recognition.max_width must be > 0")
	}

	if c.Runtime.Workers < 0 {
		return fmt.Errorf("runtime.workers must be >= 0")
	}
	return nil
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		TimeFormat: c.Log.TimeFormat,
		Output:     c.Log.Output,
	}
}

func unit(v float64) bool {
	return v >= 0 && v <= 1
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
