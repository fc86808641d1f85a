package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dunamismax/pixelshuffle/internal/app"
	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/logging"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/telemetry"
	"github.com/dunamismax/pixelshuffle/internal/worker"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, "worker")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.SetupTracing(ctx, app.TraceConfig(cfg.Telemetry), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup tracing")
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown")
		}
	}()

	if err := pipeline.Startup(); err != nil {
		logger.Fatal().Err(err).Msg("start image runtime")
	}
	defer pipeline.Shutdown()

	h, storageClient, err := app.NewHandler(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build handler")
	}
	if storageClient == nil {
		logger.Fatal().Msg("worker needs object storage to load source images")
	}

	if err := app.PrepareStorage(ctx, storageClient, cfg.Storage.Endpoint, logger); err != nil {
		logger.Error().Err(err).Msg("prepare bucket")
	}

	jobStore, closeStore, err := app.NewJobStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open job store")
	}
	defer closeStore()

	srv, err := worker.NewServer(logger, cfg.Queue, cfg.Worker, storageClient, h, jobStore)
	if err != nil {
		logger.Fatal().Err(err).Msg("build worker")
	}

	metricsServer := &http.Server{
		Addr:              cfg.Worker.MetricsAddr,
		Handler:           srv.MetricsHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", cfg.Worker.MetricsAddr).Msg("metrics listening")
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server failed")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info().
		Int("concurrency", cfg.Worker.Concurrency).
		Str("queue", cfg.Queue.Name).
		Str("redis", cfg.Queue.RedisAddr).
		Msg("starting worker")

	// Run blocks until SIGINT or SIGTERM and drains in-flight tasks itself.
	if err := srv.Run(); err != nil {
		logger.Error().Err(err).Msg("worker failed")
	}
}
