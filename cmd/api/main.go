// Package main implements the HTTP API server over a segment-file queue.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/dsjohal14/segqueue/internal/catalog"
	"github.com/dsjohal14/segqueue/internal/httpapi"
	"github.com/dsjohal14/segqueue/internal/libs/config"
	"github.com/dsjohal14/segqueue/internal/libs/obs"
	"github.com/dsjohal14/segqueue/internal/queue"
	"github.com/dsjohal14/segqueue/internal/retention"
)

func main() {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Init logger
	obs.InitLogger(cfg.LogLevel)
	logger := obs.Logger("api")

	q, sweeper, closeCatalog, err := openQueue(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open queue")
	}
	defer func() { _ = q.Close() }()
	defer closeCatalog()

	if sweeper != nil {
		if err := sweeper.Start(); err != nil {
			logger.Fatal().Err(err).Msg("failed to start retention sweeper")
		}
		defer func() { _ = sweeper.Stop() }()
	}

	// Create HTTP handler
	handler := httpapi.NewHandler(q, logger)

	// Setup router
	r := httpapi.NewRouter(handler)

	// Start server
	addr := fmt.Sprintf("%s:%s", cfg.APIHost, cfg.APIPort)
	logger.Info().Str("addr", addr).Str("queue_dir", cfg.QueueDir).Msg("starting API server")

	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Fatal().Err(err).Msg("server failed")
	}
}

// openQueue opens the queue at cfg's prefix, wiring an optional
// Postgres-backed catalog observer and an optional retention sweeper.
func openQueue(cfg *config.Config, logger zerolog.Logger) (*queue.Queue, *retention.Sweeper, func(), error) {
	prefix := filepath.Join(cfg.QueueDir, cfg.SegmentPrefix)
	closeCatalog := func() {}

	opts := []queue.Option{queue.WithLogger(logger)}

	if cfg.CatalogDSN != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		store, err := catalog.Open(ctx, cfg.CatalogDSN, func(err error) {
			logger.Warn().Err(err).Msg("catalog write failed")
		})
		if err != nil {
			return nil, nil, closeCatalog, fmt.Errorf("opening catalog: %w", err)
		}
		opts = append(opts, queue.WithObserver(store))
		closeCatalog = store.Close
		logger.Info().Msg("using Postgres-backed segment catalog")
	} else {
		logger.Info().Msg("no catalog configured, segment lifecycle is not recorded externally")
	}

	q, err := queue.Open(prefix, cfg.MaxSegmentSize, queue.OpenDefault, opts...)
	if err != nil {
		return nil, nil, closeCatalog, err
	}

	var sweeper *retention.Sweeper
	if cfg.RetentionMs > 0 {
		sweeper = retention.NewSweeper(q, time.Hour, time.Duration(cfg.RetentionMs)*time.Millisecond, logger)
	}

	return q, sweeper, closeCatalog, nil
}
