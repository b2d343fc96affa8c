// Package main implements the background retention worker: it opens the
// queue read-only and periodically removes segments past their retention
// age, without needing the write handle.
package main

import (
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dsjohal14/segqueue/internal/libs/config"
	"github.com/dsjohal14/segqueue/internal/libs/obs"
	"github.com/dsjohal14/segqueue/internal/queue"
	"github.com/dsjohal14/segqueue/internal/retention"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	obs.InitLogger(cfg.LogLevel)
	logger := obs.Logger("worker")

	prefix := filepath.Join(cfg.QueueDir, cfg.SegmentPrefix)
	q, err := queue.Open(prefix, cfg.MaxSegmentSize, queue.OpenReadOnly, queue.WithLogger(logger))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open queue")
	}
	defer func() { _ = q.Close() }()

	retentionInterval := time.Duration(cfg.RetentionMs) * time.Millisecond
	sweeper := retention.NewSweeper(q, time.Hour, retentionInterval, logger)
	if err := sweeper.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start retention sweeper")
	}
	logger.Info().Str("queue_dir", cfg.QueueDir).Dur("retention", retentionInterval).Msg("retention worker started")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info().Msg("shutting down retention worker")
	if err := sweeper.Stop(); err != nil {
		logger.Error().Err(err).Msg("error stopping sweeper")
	}
}
