package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.Detection.NMSThreshold)
	assert.Equal(t, BackendNative, cfg.Recognition.Backend)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ocr.yaml")
	doc := []byte(`
detection:
  border_size: 4
  merge_boxes: true
recognition:
  min_score: 0.7
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, doc, 0644))

	t.Setenv("OCR_WORKERS", "3")
	t.Setenv("OCR_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Detection.BorderSize)
	assert.True(t, cfg.Detection.MergeBoxes)
	assert.Equal(t, 0.7, cfg.Recognition.MinScore)
	// Untouched keys keep their defaults.
	assert.Equal(t, 0.6, cfg.Detection.BoxThreshold)
	assert.Equal(t, 3, cfg.Runtime.Workers)
	assert.Equal(t, "warn", cfg.GetLoggerConfig().Level)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("bad env int", func(t *testing.T) {
		t.Setenv("OCR_WORKERS", "many")
		_, err := Load("")
		assert.Error(t, err)
	})

	t.Run("bad backend", func(t *testing.T) {
		t.Setenv("OCR_REC_BACKEND", "cuneiform")
		_, err := Load("")
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Detection.BoxThreshold = 1.5 }},
		{"negative border", func(c *Config) { c.Detection.BorderSize = -1 }},
		{"zero max width", func(c *Config) { c.Recognition.MaxWidth = 0 }},
		{"contrast out of range", func(c *Config) { c.Detection.Contrast = 300 }},
		{"negative workers", func(c *Config) { c.Runtime.Workers = -2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
