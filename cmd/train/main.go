package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/Hrithik-12/Microgpt/pkg/config"
	"github.com/Hrithik-12/Microgpt/pkg/dataset"
	"github.com/Hrithik-12/Microgpt/pkg/model"
	"github.com/Hrithik-12/Microgpt/pkg/runlog"
)

var prefixSamples = []string{"snap", "zep", "cred"}

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("train failed", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	docs, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return err
	}
	rng := model.NewRand(cfg.Seed)
	dataset.Shuffle(docs, rng)
	fmt.Printf("dataset: %s | num docs: %d\n", cfg.DatasetPath, len(docs))

	vocab, err := model.NewVocab(docs)
	if err != nil {
		return err
	}
	fmt.Printf("unique chars: %q\n", string(vocab.Chars()))
	fmt.Printf("vocab size: %d\n", vocab.Size())

	m, err := model.New(cfg.Model, vocab, rng)
	if err != nil {
		return err
	}
	mc := cfg.Model
	fmt.Printf("config: n_layer=%d n_embd=%d n_head=%d block_size=%d\n", mc.NLayer, mc.NEmbd, mc.NHead, mc.BlockSize)
	fmt.Printf("num params: %d\n", m.Params.Len())

	loaded := false
	if !cfg.ForceTrain {
		loaded, err = loadSaved(cfg.ModelPath, m)
		switch {
		case err != nil:
			logger.Warn("saved model unusable, training from scratch", "path", cfg.ModelPath, "err", err)
		case loaded:
			fmt.Println("Model loaded! Skipping training.")
		default:
			fmt.Println("No saved model found, training from scratch...")
		}
	}

	if !loaded {
		if err := train(ctx, cfg, logger, m, docs); err != nil {
			return err
		}
		if err := save(cfg.ModelPath, m); err != nil {
			logger.Error("failed to save checkpoint", "err", err)
		}
	}

	sample(cfg, m)
	return nil
}

// loadSaved copies parameters from a checkpoint into m when its config
// and vocabulary match. It reports false with no error when there is no
// checkpoint at all; a mismatch never assigns anything.
func loadSaved(path string, m *model.Model) (bool, error) {
	ckpt, err := model.LoadCheckpoint(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	want, got := m.Config, ckpt.Config
	want.InitStd, got.InitStd = 0, 0
	if want != got {
		return false, fmt.Errorf("checkpoint config %+v differs from %+v", got, want)
	}
	if !slices.Equal(ckpt.Vocab, m.Vocab.Strings()) {
		return false, fmt.Errorf("checkpoint vocab %q differs from corpus vocab", strings.Join(ckpt.Vocab, ""))
	}
	if err := m.Params.SetValues(ckpt.Params); err != nil {
		return false, err
	}
	return true, nil
}

func train(ctx context.Context, cfg config.Config, logger *slog.Logger, m *model.Model, docs []string) error {
	trainer, err := model.NewTrainer(m, docs, cfg.Adam)
	if err != nil {
		return err
	}
	ac := cfg.Adam
	fmt.Printf("optimizer: lr=%.5f beta1=%.3f beta2=%.3f eps=%.1e steps=%d\n", ac.LearningRate, ac.Beta1, ac.Beta2, ac.Eps, ac.NumSteps)

	store, err := runlog.Open(cfg.RunLogPath)
	if err != nil {
		logger.Warn("run log disabled", "path", cfg.RunLogPath, "err", err)
		store = nil
	}
	var runID int64
	if store != nil {
		defer store.Close()
		if runID, err = store.StartRun(m.Config, ac, m.Params.Len()); err != nil {
			logger.Warn("run log disabled", "err", err)
			store = nil
		}
	}

	trainStart := time.Now()
	report, err := trainer.Run(ctx, func(res model.StepResult) error {
		if store != nil {
			if err := store.LogStep(runID, res); err != nil {
				return fmt.Errorf("run log: %w", err)
			}
		}
		printStep(cfg, res, trainStart)
		return nil
	})
	fmt.Println()
	if err != nil {
		return err
	}
	if store != nil {
		if err := store.FinishRun(runID, report.FinalLoss); err != nil {
			logger.Warn("run log finish", "err", err)
		}
	}
	logger.Info("training complete",
		"steps", report.Steps,
		"final_loss", report.FinalLoss,
		"first_window_loss", report.FirstMean,
		"last_window_loss", report.LastMean,
		"elapsed", time.Since(trainStart).Truncate(time.Millisecond))
	return nil
}

func printStep(cfg config.Config, res model.StepResult, trainStart time.Time) {
	if !cfg.Verbose {
		fmt.Printf("step %4d / %4d | loss %.4f\r", res.Step, res.NumSteps, res.Loss)
		return
	}
	if res.Step%cfg.MetricInterval != 0 && res.Step != 1 && res.Step != res.NumSteps {
		return
	}
	elapsed := time.Since(trainStart).Seconds()
	if elapsed <= 0 {
		elapsed = 1e-9
	}
	stepsPerSec := float64(res.Step) / elapsed
	etaSec := float64(res.NumSteps-res.Step) / stepsPerSec
	mem := &runtime.MemStats{}
	runtime.ReadMemStats(mem)
	fmt.Printf(
		"[step] %d/%d loss=%.4f lr=%.6f seq_len=%d doc_chars=%d steps_per_sec=%.3f elapsed=%s eta=%s heap_alloc_mb=%.2f gc=%d\n",
		res.Step,
		res.NumSteps,
		res.Loss,
		res.LR,
		res.SeqLen,
		len([]rune(res.Doc)),
		stepsPerSec,
		time.Since(trainStart).Truncate(time.Second).String(),
		time.Duration(etaSec*float64(time.Second)).Truncate(time.Second).String(),
		float64(mem.Alloc)/1024.0/1024.0,
		mem.NumGC,
	)
}

// save writes a timestamped checkpoint next to path, then path itself as
// the latest one.
func save(path string, m *model.Model) error {
	ckpt := m.Checkpoint()
	stamped := filepath.Join(filepath.Dir(path), fmt.Sprintf("checkpoint_%s.json", time.Now().Format("20060102_150405")))
	if err := model.SaveCheckpoint(stamped, ckpt); err != nil {
		return err
	}
	fmt.Printf("[model] checkpoint saved: %s\n", stamped)
	if err := model.SaveCheckpoint(path, ckpt); err != nil {
		return err
	}
	fmt.Printf("[model] latest checkpoint: %s\n", path)
	return nil
}

func sample(cfg config.Config, m *model.Model) {
	fmt.Println("\n--- Generated Startup Names ---")
	for i := 0; i < cfg.SampleCount; i++ {
		name, err := m.Generate("", cfg.Temperature)
		if err != nil {
			fmt.Printf("sample %2d: error: %v\n", i+1, err)
			continue
		}
		fmt.Printf("sample %2d: %s\n", i+1, name)
	}

	fmt.Println("\n--- Testing with prefix ---")
	for _, p := range prefixSamples {
		name, err := m.Generate(p, cfg.Temperature)
		var uce *model.UnknownCharError
		if errors.As(err, &uce) {
			fmt.Printf("%s: character %q not in vocabulary (position %d)\n", p, uce.Char, uce.Position)
			continue
		}
		if err != nil {
			fmt.Printf("%s: error: %v\n", p, err)
			continue
		}
		fmt.Printf("%s -> %s\n", p, name)
	}
}
