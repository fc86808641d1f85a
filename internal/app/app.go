// Package app assembles the transform handler and its collaborators from
// configuration for the command entry points.
package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/handler"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/storage"
	"github.com/dunamismax/pixelshuffle/internal/store"
	"github.com/dunamismax/pixelshuffle/internal/telemetry"
	"github.com/dunamismax/pixelshuffle/internal/webhook"
)

func TraceConfig(cfg config.TelemetryConfig) telemetry.TraceConfig {
	return telemetry.TraceConfig{
		ServiceName:  cfg.ServiceName,
		Exporter:     cfg.Exporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		OTLPInsecure: cfg.OTLPInsecure,
	}
}

func NewStorage(cfg config.StorageConfig) (*storage.Client, error) {
	return storage.NewClient(storage.Config{
		Endpoint: cfg.Endpoint,
		Access:   cfg.AccessKey,
		Secret:   cfg.SecretKey,
		Region:   cfg.Region,
		Bucket:   cfg.Bucket,
		UseSSL:   cfg.UseSSL,
	})
}

// PrepareStorage creates the configured bucket on self-hosted endpoints such
// as MinIO. AWS buckets are left alone.
func PrepareStorage(ctx context.Context, client *storage.Client, endpoint string, logger zerolog.Logger) error {
	if client == nil || storage.IsAWSEndpoint(endpoint) {
		return nil
	}
	if err := client.EnsureBucket(ctx); err != nil {
		return err
	}
	logger.Info().Str("bucket", client.Bucket()).Str("endpoint", endpoint).Msg("bucket ready")
	return nil
}

// NewNotifier returns nil when no Slack webhook is configured. The handler
// reports every delivery as a notification failure in that case.
func NewNotifier(cfg config.NotifyConfig, logger zerolog.Logger) handler.Notifier {
	if strings.TrimSpace(cfg.WebhookURL) == "" {
		logger.Warn().Str("config_file", cfg.ConfigFile).Msg("slack webhook is not configured, notifications will fail")
		return nil
	}

	client := webhook.NewClient(webhook.Config{
		SigningSecret: cfg.SigningSecret,
		Timeout:       cfg.Timeout,
	})
	return webhook.NewSlackNotifier(client, cfg.WebhookURL)
}

// NewHandler wires the transformer, object store and notifier. An object store
// that cannot be created is logged and left out so transforms still succeed.
func NewHandler(cfg config.Config, logger zerolog.Logger) (*handler.Handler, *storage.Client, error) {
	transformer, err := pipeline.NewTransformer(pipeline.DefaultPermuter)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize transformer: %w", err)
	}

	var objectStore handler.ObjectStore
	storageClient, err := NewStorage(cfg.Storage)
	if err != nil {
		logger.Error().Err(err).Msg("object storage unavailable")
	} else {
		objectStore = storageClient
	}

	h := handler.New(
		logger,
		transformer,
		objectStore,
		NewNotifier(cfg.Notify, logger),
		handler.Config{
			Bucket:    cfg.Storage.Bucket,
			Recipient: cfg.Notify.User,
		},
	)
	return h, storageClient, nil
}

// NewJobStore picks Postgres when a DSN is configured and memory otherwise.
// The returned close function is never nil.
func NewJobStore(ctx context.Context, cfg config.DatabaseConfig, logger zerolog.Logger) (store.JobStore, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		logger.Info().Msg("using in-memory job store")
		return store.NewMemoryJobStore(), func() {}, nil
	}

	pg, err := store.NewPostgresJobStore(ctx, cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	logger.Info().Msg("using postgres job store")
	return pg, func() {
		if err := pg.Close(); err != nil {
			logger.Error().Err(err).Msg("close postgres job store")
		}
	}, nil
}
