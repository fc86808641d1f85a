package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/dunamismax/pixelshuffle/internal/app"
	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/logging"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	logger := logging.New(cfg.Log.Level, cfg.Log.Format, "lambda")
	if err != nil {
		logger.Fatal().Err(err).Msg("load config")
	}

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), app.TraceConfig(cfg.Telemetry), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("setup tracing")
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	if err := pipeline.Startup(); err != nil {
		logger.Fatal().Err(err).Msg("start image runtime")
	}
	defer pipeline.Shutdown()

	h, _, err := app.NewHandler(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("build handler")
	}

	lambda.Start(h.HandleAPIGateway)
}
