// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Hrithik-12/Microgpt/pkg/model"
)

type Config struct {
	DatasetPath string
	ModelPath   string
	RunLogPath  string
	Port        string
	Seed        uint64

	Model model.Config
	Adam  model.AdamConfig

	Temperature    float64
	SampleCount    int
	ForceTrain     bool
	Verbose        bool
	MetricInterval int
	LogLevel       slog.Level
}

// Load reads every setting, falling back to defaults for unset or
// unparsable values.
func Load() Config {
	mc := model.DefaultConfig()
	ac := model.DefaultAdamConfig()
	return Config{
		DatasetPath: envString("DATASET_PATH", "input.txt"),
		ModelPath:   envString("MODEL_PATH", "models/latest_checkpoint.json"),
		RunLogPath:  envString("RUNLOG_PATH", "models/runs.db"),
		Port:        envString("PORT", "5000"),
		Seed:        uint64(envInt("SEED", 40)),
		Model: model.Config{
			NLayer:    envInt("N_LAYER", mc.NLayer),
			NEmbd:     envInt("N_EMBD", mc.NEmbd),
			NHead:     envInt("N_HEAD", mc.NHead),
			BlockSize: envInt("BLOCK_SIZE", mc.BlockSize),
			InitStd:   envFloat("INIT_STD", mc.InitStd),
		},
		Adam: model.AdamConfig{
			LearningRate: envFloat("LEARNING_RATE", ac.LearningRate),
			Beta1:        envFloat("BETA1", ac.Beta1),
			Beta2:        envFloat("BETA2", ac.Beta2),
			Eps:          envFloat("EPS_ADAM", ac.Eps),
			NumSteps:     envInt("NUM_STEPS", ac.NumSteps),
		},
		Temperature:    envFloat("TEMPERATURE", 0.5),
		SampleCount:    envInt("SAMPLE_COUNT", 10),
		ForceTrain:     envBool("FORCE_TRAIN", false),
		Verbose:        envBool("VERBOSE", false),
		MetricInterval: envInt("METRIC_INTERVAL", 25),
		LogLevel:       envLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func (c Config) Validate() error {
	if err := c.Model.Validate(); err != nil {
		return err
	}
	if err := c.Adam.Validate(); err != nil {
		return err
	}
	if c.Temperature <= 0 {
		return fmt.Errorf("invalid TEMPERATURE: must be > 0")
	}
	if c.SampleCount < 1 {
		return fmt.Errorf("invalid SAMPLE_COUNT: must be >=1")
	}
	if c.MetricInterval < 1 {
		return fmt.Errorf("invalid METRIC_INTERVAL: must be >=1")
	}
	return nil
}

// Logger builds the text logger every binary writes to stderr.
func (c Config) Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: c.LogLevel}))
}

func normalize(s string) string {
	return strings.TrimSpace(s)
}

func envString(name, def string) string {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func envInt(name string, def int) int {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(name string, def float64) float64 {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return n
}

func envBool(name string, def bool) bool {
	v := strings.ToLower(normalize(os.Getenv(name)))
	if v == "" {
		return def
	}
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func envLevel(name string, def slog.Level) slog.Level {
	v := normalize(os.Getenv(name))
	if v == "" {
		return def
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return def
	}
	return l
}
