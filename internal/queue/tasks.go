package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

const TypeTransformImage = "image:transform"

// TransformImagePayload points the worker at a source JPEG already uploaded
// to object storage.
type TransformImagePayload struct {
	JobID       string    `json:"job_id"`
	SourceKey   string    `json:"source_key"`
	RequestedAt time.Time `json:"requested_at"`
}

func (p TransformImagePayload) Validate() error {
	if strings.TrimSpace(p.JobID) == "" {
		return errors.New("job_id is required")
	}
	if strings.TrimSpace(p.SourceKey) == "" {
		return errors.New("source_key is required")
	}
	return nil
}

func NewTransformImageTask(payload TransformImagePayload) (*asynq.Task, error) {
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transform payload: %w", err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal transform payload: %w", err)
	}
	return asynq.NewTask(TypeTransformImage, body), nil
}

func ParseTransformImagePayload(task *asynq.Task) (TransformImagePayload, error) {
	var payload TransformImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return TransformImagePayload{}, fmt.Errorf("unmarshal transform payload: %w", err)
	}
	if err := payload.Validate(); err != nil {
		return TransformImagePayload{}, err
	}
	return payload, nil
}
