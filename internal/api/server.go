package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelshuffle/internal/domain"
	"github.com/dunamismax/pixelshuffle/internal/handler"
	"github.com/dunamismax/pixelshuffle/internal/id"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/queue"
	"github.com/dunamismax/pixelshuffle/internal/store"
)

const (
	HeaderObjectKey = "X-Pixelshuffle-Object-Key"
	HeaderDelivery  = "X-Pixelshuffle-Delivery"

	defaultMaxBodyBytes = 10 << 20
	uploadPrefix        = "uploads"
)

var errEmptyBody = errors.New("request body is empty")

type processor interface {
	Process(ctx context.Context, input []byte) (handler.Outcome, error)
}

type queueEnqueuer interface {
	EnqueueTransformImage(ctx context.Context, payload queue.TransformImagePayload) (*asynq.TaskInfo, error)
}

// ObjectStorage receives uploaded job sources.
type ObjectStorage interface {
	WriteObject(ctx context.Context, objectKey string, data []byte, contentType string) error
	Bucket() string
}

type Options struct {
	MaxBodyBytes int64
	RateLimiter  RateLimiter
	UserIDHeader string
}

type Server struct {
	logger       zerolog.Logger
	processor    processor
	queueClient  queueEnqueuer
	jobStore     store.JobStore
	storage      ObjectStorage
	maxBodyBytes int64

	rateLimiter           RateLimiter
	rateLimitUserIDHeader string

	metrics *metrics
	tracer  trace.Tracer
	mux     *http.ServeMux
}

func NewServer(
	logger zerolog.Logger,
	processor processor,
	queueClient queueEnqueuer,
	jobStore store.JobStore,
	storage ObjectStorage,
	opts Options,
) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if strings.TrimSpace(opts.UserIDHeader) == "" {
		opts.UserIDHeader = "X-User-ID"
	}
	if storage == nil {
		storage = unavailableObjectStorage{}
	}

	s := &Server{
		logger:                logger,
		processor:             processor,
		queueClient:           queueClient,
		jobStore:              jobStore,
		storage:               storage,
		maxBodyBytes:          opts.MaxBodyBytes,
		rateLimiter:           opts.RateLimiter,
		rateLimitUserIDHeader: opts.UserIDHeader,
		metrics:               newMetrics(),
		tracer:                otel.Tracer("pixelshuffle/api"),
		mux:                   http.NewServeMux(),
	}
	s.routes()
	return s
}

type unavailableObjectStorage struct{}

func (unavailableObjectStorage) WriteObject(context.Context, string, []byte, string) error {
	return errors.New("object storage is unavailable")
}

func (unavailableObjectStorage) Bucket() string {
	return ""
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
	s.mux.HandleFunc("POST /v1/transform", s.handleTransform)
	s.mux.HandleFunc("POST /v1/jobs", s.handleCreateJob)
	s.mux.HandleFunc("GET /v1/jobs/{id}", s.handleGetJob)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTransform(w http.ResponseWriter, r *http.Request) {
	if s.processor == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "transformer is unavailable"})
		return
	}

	input, err := s.readImageBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}

	outcome, err := s.processor.Process(r.Context(), input)
	if err != nil {
		s.logger.Warn().Err(err).Msg("transform rejected")
		writeJSON(w, handler.TransformErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}
	s.metrics.transformDelivery.WithLabelValues(string(outcome.Delivery)).Inc()
	if outcome.Err != nil {
		s.logger.Error().Err(outcome.Err).Str("delivery", string(outcome.Delivery)).Msg("transformed image was not fully delivered")
	}

	if r.URL.Query().Get("encoding") == "base64" {
		writeJSON(w, handler.StatusCode(outcome), handler.NewResponse(outcome))
		return
	}

	w.Header().Set("Content-Type", handler.ContentTypeJPEG)
	w.Header().Set(HeaderDelivery, string(outcome.Delivery))
	if outcome.ObjectKey != "" {
		w.Header().Set(HeaderObjectKey, outcome.ObjectKey)
	}
	w.WriteHeader(handler.StatusCode(outcome))
	_, _ = w.Write(outcome.Result.Data)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil || s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async jobs are unavailable"})
		return
	}

	input, err := s.readImageBody(w, r)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := pipeline.CheckPixelLimit(input); err != nil {
		writeJSON(w, handler.TransformErrorStatus(err), map[string]string{"error": err.Error()})
		return
	}

	now := time.Now().UTC()
	jobID := id.New()
	sourceKey := fmt.Sprintf("%s/%s.jpg", uploadPrefix, jobID)
	log := s.logger.With().Str("job_id", jobID).Logger()

	if err := s.storage.WriteObject(r.Context(), sourceKey, input, handler.ContentTypeJPEG); err != nil {
		log.Error().Err(err).Str("source_key", sourceKey).Msg("source upload failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to store source image"})
		return
	}

	job := domain.Job{
		ID:        jobID,
		UserID:    strings.TrimSpace(r.Header.Get(s.rateLimitUserIDHeader)),
		Status:    domain.JobStatusCreated,
		SourceKey: sourceKey,
		Bucket:    s.storage.Bucket(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobStore.Create(r.Context(), job); err != nil {
		log.Error().Err(err).Msg("create job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create job"})
		return
	}

	taskInfo, err := s.queueClient.EnqueueTransformImage(r.Context(), queue.TransformImagePayload{
		JobID:       jobID,
		SourceKey:   sourceKey,
		RequestedAt: now,
	})
	if err != nil {
		log.Error().Err(err).Msg("enqueue failed")
		if _, cerr := s.jobStore.Complete(r.Context(), jobID, domain.JobResult{
			Status: domain.JobStatusFailed,
			Error:  "enqueue failed",
		}); cerr != nil {
			log.Error().Err(cerr).Msg("mark job failed")
		}
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to enqueue job"})
		return
	}

	if _, err := s.jobStore.UpdateStatus(r.Context(), jobID, domain.JobStatusQueued); err != nil {
		log.Error().Err(err).Msg("update status failed")
	}
	s.metrics.queueEnqueued.WithLabelValues(taskInfo.Queue).Inc()
	log.Info().Str("source_key", sourceKey).Str("queue", taskInfo.Queue).Msg("job queued")

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     jobID,
		"status":     domain.JobStatusQueued,
		"source_key": sourceKey,
		"queue":      taskInfo.Queue,
		"task_id":    taskInfo.ID,
		"status_url": "/v1/jobs/" + jobID,
	})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobStore == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async jobs are unavailable"})
		return
	}

	jobID := strings.TrimSpace(r.PathValue("id"))
	job, ok, err := s.jobStore.Get(r.Context(), jobID)
	if err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("fetch job failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load job"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "job not found"})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// readImageBody returns raw JPEG bytes. A Content-Type of image/jpeg means the
// body is the image itself; anything else is treated as base64 text.
func (s *Server) readImageBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, errEmptyBody
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == handler.ContentTypeJPEG {
		return body, nil
	}
	return pipeline.DecodeBase64(string(body))
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "request body too large"})
	case errors.Is(err, errEmptyBody), errors.Is(err, pipeline.ErrDecode):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "failed to read request body"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
