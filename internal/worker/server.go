package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/domain"
	"github.com/dunamismax/pixelshuffle/internal/handler"
	"github.com/dunamismax/pixelshuffle/internal/queue"
	"github.com/dunamismax/pixelshuffle/internal/store"
)

var errSourceMissing = errors.New("source image missing")

// SourceReader loads uploaded source images.
type SourceReader interface {
	ObjectExists(ctx context.Context, objectKey string) (bool, error)
	ReadObject(ctx context.Context, objectKey string) ([]byte, error)
}

type Processor interface {
	Process(ctx context.Context, input []byte) (handler.Outcome, error)
}

type Server struct {
	logger    zerolog.Logger
	server    *asynq.Server
	source    SourceReader
	processor Processor
	jobStore  store.JobStore
	metrics   *metrics
	tracer    trace.Tracer
}

func NewServer(
	logger zerolog.Logger,
	queueCfg config.QueueConfig,
	workerCfg config.WorkerConfig,
	source SourceReader,
	processor Processor,
	jobStore store.JobStore,
) (*Server, error) {
	if source == nil {
		return nil, errors.New("source reader is required")
	}
	if processor == nil {
		return nil, errors.New("processor is required")
	}

	s := newServer(logger, source, processor, jobStore)
	s.server = asynq.NewServer(
		queueCfg.RedisClientOpt(),
		asynq.Config{
			Concurrency: max(1, workerCfg.Concurrency),
			Queues: map[string]int{
				queueCfg.Name: 1,
			},
			LogLevel: asynq.InfoLevel,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error().
					Err(err).
					Str("task_type", task.Type()).
					Int("retry", retried).
					Int("max_retry", maxRetry).
					Msg("task failed")
			}),
		},
	)
	return s, nil
}

func newServer(logger zerolog.Logger, source SourceReader, processor Processor, jobStore store.JobStore) *Server {
	return &Server{
		logger:    logger,
		source:    source,
		processor: processor,
		jobStore:  jobStore,
		metrics:   newMetrics(),
		tracer:    otel.Tracer("pixelshuffle/worker"),
	}
}

func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.TypeTransformImage, s.handleTransformImage)
	return s.server.Run(mux)
}

func (s *Server) Shutdown() {
	s.server.Shutdown()
}

func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.Handler()
}

func (s *Server) handleTransformImage(ctx context.Context, task *asynq.Task) error {
	startedAt := time.Now()
	status := domain.JobStatusFailed
	delivery := "none"

	payload, err := queue.ParseTransformImagePayload(task)
	if err != nil {
		return fmt.Errorf("parse payload: %v: %w", err, asynq.SkipRetry)
	}

	ctx, span := s.tracer.Start(ctx, "worker.transform_image", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("job.id", payload.JobID),
		attribute.String("job.source_key", payload.SourceKey),
	)
	defer span.End()
	defer func() {
		s.metrics.jobDuration.WithLabelValues(status).Observe(time.Since(startedAt).Seconds())
		s.metrics.jobsTotal.WithLabelValues(status, delivery).Inc()
	}()

	s.metrics.activeJobs.Inc()
	defer s.metrics.activeJobs.Dec()

	log := s.logger.With().Str("job_id", payload.JobID).Logger()

	if !s.updateJobStatus(ctx, payload.JobID, domain.JobStatusProcessing) {
		status = "skipped"
		log.Warn().Msg("job already finished, dropping duplicate task")
		span.SetStatus(codes.Ok, "already finished")
		return nil
	}
	log.Info().Str("source_key", payload.SourceKey).Msg("transforming")

	exists, err := s.source.ObjectExists(ctx, payload.SourceKey)
	if err == nil && !exists {
		err = fmt.Errorf("%w: %s", errSourceMissing, payload.SourceKey)
		s.failJob(ctx, payload.JobID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "source missing")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	source, err := s.source.ReadObject(ctx, payload.SourceKey)
	if err != nil {
		s.failJob(ctx, payload.JobID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "load source failed")
		return fmt.Errorf("load source: %w", err)
	}

	outcome, err := s.processor.Process(ctx, source)
	if err != nil {
		s.failJob(ctx, payload.JobID, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	delivery = string(outcome.Delivery)
	s.metrics.pixelsProcessedTotal.Add(float64(outcome.Result.Width * outcome.Result.Height))

	result := domain.JobResult{
		Status:    domain.JobStatusSucceeded,
		OutputKey: outcome.ObjectKey,
		Width:     outcome.Result.Width,
		Height:    outcome.Result.Height,
		Delivery:  delivery,
	}
	if outcome.Err != nil {
		result.Status = domain.JobStatusFailed
		result.Error = outcome.Err.Error()
	}
	s.completeJob(ctx, payload.JobID, result)

	span.SetAttributes(
		attribute.String("job.output_key", outcome.ObjectKey),
		attribute.String("job.delivery", delivery),
	)
	if outcome.Err != nil {
		log.Warn().Err(outcome.Err).Str("delivery", delivery).Msg("transformed image was not fully delivered")
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, delivery)
		return fmt.Errorf("%v: %w", outcome.Err, asynq.SkipRetry)
	}

	status = domain.JobStatusSucceeded
	log.Info().
		Str("output_key", outcome.ObjectKey).
		Int("width", outcome.Result.Width).
		Int("height", outcome.Result.Height).
		Msg("transformed")
	span.SetStatus(codes.Ok, "transformed")
	return nil
}

// updateJobStatus reports false when the job has already reached a terminal
// status, which is never moved back. Store errors are logged and do not stop
// the task.
func (s *Server) updateJobStatus(ctx context.Context, jobID, status string) bool {
	if s.jobStore == nil {
		return true
	}

	job, ok, err := s.jobStore.Get(ctx, jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("job lookup failed")
	} else if ok && domain.IsTerminalStatus(job.Status) {
		return false
	}

	if _, err := s.jobStore.UpdateStatus(ctx, jobID, status); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Str("status", status).Msg("job status update failed")
	}
	return true
}

func (s *Server) failJob(ctx context.Context, jobID string, cause error) {
	s.completeJob(ctx, jobID, domain.JobResult{
		Status: domain.JobStatusFailed,
		Error:  cause.Error(),
	})
}

func (s *Server) completeJob(ctx context.Context, jobID string, result domain.JobResult) {
	if s.jobStore == nil {
		return
	}
	if _, err := s.jobStore.Complete(ctx, jobID, result); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Str("status", result.Status).Msg("job completion write failed")
	}
}
