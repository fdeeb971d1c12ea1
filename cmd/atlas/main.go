// Command atlas runs the batch risk pipeline: extract climate observations
// per block, fuse them into features, fit the stress models, score and
// classify blocks, and write the GeoJSON risk atlas. Health, readiness,
// and metrics endpoints stay up for the duration of the run.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/hydro-risk-atlas/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/hydro-risk-atlas/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-risk-atlas/internal/adapter/remote"
	"github.com/couchcryptid/hydro-risk-atlas/internal/config"
	"github.com/couchcryptid/hydro-risk-atlas/internal/observability"
	"github.com/couchcryptid/hydro-risk-atlas/internal/pipeline"
	"github.com/couchcryptid/hydro-risk-atlas/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Extraction source (feature-flagged via REMOTE_ENABLED / REMOTE_TOKEN).
	var extractor remote.Extractor
	if cfg.RemoteEnabled {
		client := remote.NewClient(cfg.RemoteBaseURL, cfg.RemoteToken, cfg.RemoteTimeout, metrics, logger)
		extractor = remote.NewCachedExtractor(client, cfg.RemoteCacheSize, metrics)
		logger.Info("remote extraction enabled", "cache_size", cfg.RemoteCacheSize, "timeout", cfg.RemoteTimeout)
	} else {
		extractor = remote.NewFileSource(cfg.CSVDir)
		logger.Info("remote extraction disabled, reading exported tables", "dir", cfg.CSVDir)
	}

	repo, err := store.NewSQLiteDB(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer repo.Close()

	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.PublishEnabled() {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger)
		publisher = kafkaPublisher
		logger.Info("risk event publishing enabled", "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(cfg, extractor, repo, publisher, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	runErr := p.Run(ctx)
	if runErr != nil {
		logger.Error("pipeline failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	if runErr != nil {
		os.Exit(1)
	}
	logger.Info("run complete", "atlas", cfg.AtlasPath)
}
