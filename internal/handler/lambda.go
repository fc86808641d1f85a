package handler

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"github.com/dunamismax/pixelshuffle/internal/pipeline"
)

// HandleAPIGateway is the Lambda entry point. The request body always carries
// the image as base64 text, whether or not API Gateway flagged it as such.
func (h *Handler) HandleAPIGateway(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	log := h.logger.With().Str("request_id", req.RequestContext.RequestID).Logger()

	input, err := pipeline.DecodeBase64(req.Body)
	if err != nil {
		log.Warn().Err(err).Msg("rejected request body")
		return proxyResponse(ErrorResponse(TransformErrorStatus(err), err)), nil
	}

	outcome, err := h.Process(ctx, input)
	if err != nil {
		log.Warn().Err(err).Msg("transform failed")
		return proxyResponse(ErrorResponse(TransformErrorStatus(err), err)), nil
	}

	log.Info().
		Str("delivery", string(outcome.Delivery)).
		Str("object_key", outcome.ObjectKey).
		Int("width", outcome.Result.Width).
		Int("height", outcome.Result.Height).
		Msg("request handled")

	return proxyResponse(NewResponse(outcome)), nil
}

func proxyResponse(r Response) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode:      r.StatusCode,
		Headers:         r.Headers,
		Body:            r.Body,
		IsBase64Encoded: r.IsBase64Encoded,
	}
}
