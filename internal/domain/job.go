package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"
)

// Job tracks one asynchronous transform from upload to delivery.
type Job struct {
	ID        string    `json:"job_id"`
	UserID    string    `json:"user_id,omitempty"`
	Status    string    `json:"status"`
	SourceKey string    `json:"source_key"`
	Bucket    string    `json:"bucket,omitempty"`
	OutputKey string    `json:"output_key,omitempty"`
	Width     int       `json:"width,omitempty"`
	Height    int       `json:"height,omitempty"`
	Delivery  string    `json:"delivery,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// JobResult is written once a job reaches a terminal status.
type JobResult struct {
	Status    string
	OutputKey string
	Width     int
	Height    int
	Delivery  string
	Error     string
}

func (j Job) Validate() error {
	if strings.TrimSpace(j.ID) == "" {
		return errors.New("job id is required")
	}
	if strings.TrimSpace(j.SourceKey) == "" {
		return errors.New("source key is required")
	}
	return nil
}

func IsTerminalStatus(status string) bool {
	return status == JobStatusSucceeded || status == JobStatusFailed
}
