package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dunamismax/pixelshuffle/internal/pipeline"
)

const (
	HeaderContentType = "content-type"
	ContentTypeJPEG   = "image/jpeg"
	ContentTypeJSON   = "application/json"
)

// Response is the API Gateway proxy envelope returned to callers.
type Response struct {
	IsBase64Encoded bool              `json:"isBase64Encoded"`
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
}

// StatusCode maps a delivery outcome to the HTTP status reported to the
// caller.
func StatusCode(o Outcome) int {
	if o.Delivered() {
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

// NewResponse wraps the base64 image. The image is present even when storage
// or notification failed.
func NewResponse(o Outcome) Response {
	return Response{
		IsBase64Encoded: true,
		StatusCode:      StatusCode(o),
		Headers:         map[string]string{HeaderContentType: ContentTypeJPEG},
		Body:            o.Result.Base64,
	}
}

// TransformErrorStatus maps a transform-stage error to an HTTP status.
func TransformErrorStatus(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrDecode):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrImageTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, pipeline.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// ErrorResponse carries no image data, only a JSON error body.
func ErrorResponse(status int, err error) Response {
	body, _ := json.Marshal(map[string]string{"error": err.Error()})
	return Response{
		StatusCode: status,
		Headers:    map[string]string{HeaderContentType: ContentTypeJSON},
		Body:       string(body),
	}
}
