package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/webhook"
)

var (
	ErrStorage      = errors.New("store transformed image")
	ErrNotification = errors.New("notify recipient")
)

// ObjectStore persists a transformed image and returns its object key.
type ObjectStore interface {
	Store(ctx context.Context, data []byte, destination string) (string, error)
}

type Notifier interface {
	Notify(ctx context.Context, msg webhook.Message) error
}

// Delivery is what happened to a transformed image after the transform
// succeeded.
type Delivery string

const (
	DeliveryCompleted          Delivery = "completed"
	DeliveryStorageFailed      Delivery = "storage_failed"
	DeliveryNotificationFailed Delivery = "notification_failed"
)

// Outcome is returned for every successful transform, whether or not the
// result could be stored and announced. Err wraps ErrStorage or
// ErrNotification when Delivery is not DeliveryCompleted.
type Outcome struct {
	Result    pipeline.Result
	ObjectKey string
	Bucket    string
	Delivery  Delivery
	Err       error
}

func (o Outcome) Delivered() bool {
	return o.Delivery == DeliveryCompleted
}

type Config struct {
	Bucket    string
	Recipient string
}

type Handler struct {
	logger      zerolog.Logger
	transformer pipeline.Transformer
	store       ObjectStore
	notifier    Notifier
	bucket      string
	recipient   string
	tracer      trace.Tracer
}

func New(logger zerolog.Logger, transformer pipeline.Transformer, store ObjectStore, notifier Notifier, cfg Config) *Handler {
	return &Handler{
		logger:      logger,
		transformer: transformer,
		store:       store,
		notifier:    notifier,
		bucket:      cfg.Bucket,
		recipient:   cfg.Recipient,
		tracer:      otel.Tracer("pixelshuffle/handler"),
	}
}

// Process transforms input, uploads the result and notifies the recipient.
// A transform failure is returned as an error with no Outcome; failures after
// the transform are reported in the Outcome alongside the transformed image.
func (h *Handler) Process(ctx context.Context, input []byte) (Outcome, error) {
	ctx, span := h.tracer.Start(ctx, "handler.process")
	defer span.End()
	span.SetAttributes(attribute.Int("image.input_bytes", len(input)))

	result, err := h.transformer.Transform(ctx, input)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transform failed")
		return Outcome{}, fmt.Errorf("transform stage: %w", err)
	}
	span.SetAttributes(
		attribute.Int("image.width", result.Width),
		attribute.Int("image.height", result.Height),
		attribute.Int("image.output_bytes", len(result.Data)),
	)

	outcome := h.deliver(ctx, result)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, string(outcome.Delivery))
	} else {
		span.SetStatus(codes.Ok, "delivered")
	}
	return outcome, nil
}

func (h *Handler) deliver(ctx context.Context, result pipeline.Result) Outcome {
	outcome := Outcome{Result: result, Bucket: h.bucket}

	if h.store == nil {
		outcome.Delivery = DeliveryStorageFailed
		outcome.Err = fmt.Errorf("%w: object store is unavailable", ErrStorage)
		h.logger.Error().Err(outcome.Err).Msg("upload skipped")
		return outcome
	}

	key, err := h.store.Store(ctx, result.Data, h.bucket)
	if err != nil {
		outcome.Delivery = DeliveryStorageFailed
		outcome.Err = fmt.Errorf("%w: %v", ErrStorage, err)
		h.logger.Error().Err(err).Str("bucket", h.bucket).Msg("upload failed")
		return outcome
	}
	outcome.ObjectKey = key
	h.logger.Info().Str("bucket", h.bucket).Str("object_key", key).Int("bytes", len(result.Data)).Msg("transformed image stored")

	if h.notifier == nil {
		outcome.Delivery = DeliveryNotificationFailed
		outcome.Err = fmt.Errorf("%w: notifier is unavailable", ErrNotification)
		h.logger.Error().Err(outcome.Err).Str("object_key", key).Msg("notification skipped")
		return outcome
	}

	msg := webhook.TransformedImageMessage(h.recipient, key, h.bucket)
	if err := h.notifier.Notify(ctx, msg); err != nil {
		outcome.Delivery = DeliveryNotificationFailed
		outcome.Err = fmt.Errorf("%w: %v", ErrNotification, err)
		h.logger.Error().Err(err).Str("object_key", key).Msg("notification failed")
		return outcome
	}

	outcome.Delivery = DeliveryCompleted
	return outcome
}
