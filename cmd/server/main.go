package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hrithik-12/Microgpt/pkg/config"
	"github.com/Hrithik-12/Microgpt/pkg/dataset"
	"github.com/Hrithik-12/Microgpt/pkg/model"
)

// streamDelay paces /generate/stream so clients can animate each step.
const streamDelay = 300 * time.Millisecond

func main() {
	cfg := config.Load()
	logger := cfg.Logger()
	slog.SetDefault(logger)

	m, err := loadModel(cfg, logger)
	if err != nil {
		logger.Error("no model to serve", "err", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newServer(m, logger, streamDelay).routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("server listening", "addr", srv.Addr, "vocab_size", m.Vocab.Size(), "num_params", m.Params.Len())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}

// loadModel prefers the trained checkpoint. Without one it serves an
// untrained model built from the corpus so the API still answers.
func loadModel(cfg config.Config, logger *slog.Logger) (*model.Model, error) {
	rng := model.NewRand(cfg.Seed)
	ckpt, err := model.LoadCheckpoint(cfg.ModelPath)
	if err == nil {
		m, err := model.FromCheckpoint(ckpt, rng)
		if err == nil {
			logger.Info("model loaded", "path", cfg.ModelPath, "created_at", ckpt.CreatedAt)
			return m, nil
		}
		logger.Warn("checkpoint rejected", "path", cfg.ModelPath, "err", err)
	} else {
		logger.Warn("checkpoint unavailable", "path", cfg.ModelPath, "err", err)
	}

	docs, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, err
	}
	dataset.Shuffle(docs, rng)
	vocab, err := model.NewVocab(docs)
	if err != nil {
		return nil, err
	}
	logger.Warn("serving an untrained model; run cmd/train first", "dataset", cfg.DatasetPath)
	return model.New(cfg.Model, vocab, rng)
}
