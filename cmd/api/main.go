package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dunamismax/pixelshuffle/internal/api"
	"github.com/dunamismax/pixelshuffle/internal/app"
	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/logging"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/queue"
	"github.com/dunamismax/pixelshuffle/internal/ratelimit"
	"github.com/dunamismax/pixelshuffle/internal/storage"
	"github.com/dunamismax/pixelshuffle/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, "api")
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

	if err := app.PrepareStorage(ctx, storageClient, cfg.Storage.Endpoint, logger); err != nil {
		logger.Error().Err(err).Msg("prepare bucket")
	}

	jobStore, closeStore, err := app.NewJobStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("open job store")
	}
	defer closeStore()

	queueClient := queue.NewClient(cfg.Queue.RedisClientOpt(), cfg.Queue.Name)
	defer func() {
		if err := queueClient.Close(); err != nil {
			logger.Error().Err(err).Msg("queue client close")
		}
	}()

	opts := api.Options{
		MaxBodyBytes: cfg.API.MaxBodyBytes,
		UserIDHeader: cfg.RateLimit.UserIDHeader,
	}
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Queue.RedisAddr,
			Password: cfg.Queue.RedisPassword,
			DB:       cfg.Queue.RedisDB,
		})
		defer redisClient.Close()

		limiter, err := ratelimit.NewRedisTokenBucket(redisClient, cfg.RateLimit.Capacity, cfg.RateLimit.Window, ratelimit.DefaultKeyPrefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("build rate limiter")
		}
		opts.RateLimiter = limiter
	}

	server := api.NewServer(logger, h, queueClient, jobStore, uploadStorage(storageClient), opts)

	httpServer := &http.Server{
		Addr:         cfg.API.Addr,
		Handler:      server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.API.Addr).Msg("listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info().Msg("shutting down")
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		os.Exit(1)
	}
}

// uploadStorage keeps a nil client a nil interface so the API falls back to
// its unavailable-storage stub instead of calling through a nil pointer.
func uploadStorage(client *storage.Client) api.ObjectStorage {
	if client == nil {
		return nil
	}
	return client
}
