package config

import (
	"log/slog"
	"testing"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"DATASET_PATH", "PORT", "SEED", "N_EMBD", "NUM_STEPS", "VERBOSE", "LOG_LEVEL", "TEMPERATURE"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.DatasetPath != "input.txt" || cfg.Port != "5000" || cfg.Seed != 40 {
		t.Fatalf("defaults = %+v", cfg)
	}
	if cfg.Model != model.DefaultConfig() || cfg.Adam != model.DefaultAdamConfig() {
		t.Fatalf("model defaults = %+v %+v", cfg.Model, cfg.Adam)
	}
	if cfg.Temperature != 0.5 || cfg.Verbose || cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("N_EMBD", " 32 ")
	t.Setenv("N_HEAD", "8")
	t.Setenv("LEARNING_RATE", "0.005")
	t.Setenv("VERBOSE", "yes")
	t.Setenv("FORCE_TRAIN", "1")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SEED", "7")
	t.Setenv("NUM_STEPS", "not-a-number")
	cfg := Load()
	if cfg.Model.NEmbd != 32 || cfg.Model.NHead != 8 || cfg.Adam.LearningRate != 0.005 {
		t.Fatalf("overrides = %+v %+v", cfg.Model, cfg.Adam)
	}
	if !cfg.Verbose || !cfg.ForceTrain || cfg.LogLevel != slog.LevelDebug || cfg.Seed != 7 {
		t.Fatalf("overrides = %+v", cfg)
	}
	if cfg.Adam.NumSteps != 1000 {
		t.Fatalf("unparsable value should fall back, got %d", cfg.Adam.NumSteps)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"heads", func(c *Config) { c.Model.NHead = 5 }},
		{"steps", func(c *Config) { c.Adam.NumSteps = 0 }},
		{"temperature", func(c *Config) { c.Temperature = 0 }},
		{"samples", func(c *Config) { c.SampleCount = 0 }},
		{"interval", func(c *Config) { c.MetricInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			tt.edit(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("invalid config accepted")
			}
		})
	}
}
