package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelshuffle/internal/domain"
	"github.com/dunamismax/pixelshuffle/internal/handler"
	"github.com/dunamismax/pixelshuffle/internal/pipeline"
	"github.com/dunamismax/pixelshuffle/internal/queue"
	"github.com/dunamismax/pixelshuffle/internal/store"
)

type fakeSource struct {
	objects map[string][]byte
	err     error
}

func (f *fakeSource) ObjectExists(_ context.Context, key string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeSource) ReadObject(_ context.Context, key string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return data, nil
}

type fakeProcessor struct {
	outcome handler.Outcome
	err     error
	input   []byte
}

func (f *fakeProcessor) Process(_ context.Context, input []byte) (handler.Outcome, error) {
	f.input = input
	return f.outcome, f.err
}

func newTestServer(t *testing.T, source SourceReader, processor Processor) (*Server, *store.MemoryJobStore) {
	t.Helper()

	jobs := store.NewMemoryJobStore()
	now := time.Now().UTC()
	require.NoError(t, jobs.Create(context.Background(), domain.Job{
		ID:        "job-1",
		Status:    domain.JobStatusQueued,
		SourceKey: "uploads/job-1.jpg",
		CreatedAt: now,
		UpdatedAt: now,
	}))
	return newServer(zerolog.Nop(), source, processor, jobs), jobs
}

func transformTask(t *testing.T) *asynq.Task {
	t.Helper()

	task, err := queue.NewTransformImageTask(queue.TransformImagePayload{
		JobID:       "job-1",
		SourceKey:   "uploads/job-1.jpg",
		RequestedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	return task
}

func TestHandleTransformImageSucceeds(t *testing.T) {
	source := &fakeSource{objects: map[string][]byte{"uploads/job-1.jpg": []byte("jpeg")}}
	processor := &fakeProcessor{outcome: handler.Outcome{
		Result:    pipeline.Result{Data: []byte("out"), Width: 512, Height: 256},
		ObjectKey: "abc.jpg",
		Bucket:    "bucket",
		Delivery:  handler.DeliveryCompleted,
	}}
	s, jobs := newTestServer(t, source, processor)

	require.NoError(t, s.handleTransformImage(context.Background(), transformTask(t)))
	assert.Equal(t, []byte("jpeg"), processor.input)

	job, ok, err := jobs.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, "abc.jpg", job.OutputKey)
	assert.Equal(t, 512, job.Width)
	assert.Equal(t, 256, job.Height)
	assert.Equal(t, "completed", job.Delivery)
	assert.Empty(t, job.Error)

	assert.Equal(t, float64(512*256), testutil.ToFloat64(s.metrics.pixelsProcessedTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.jobsTotal.WithLabelValues(domain.JobStatusSucceeded, "completed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(s.metrics.activeJobs))
}

func TestHandleTransformImageTransformErrorSkipsRetry(t *testing.T) {
	source := &fakeSource{objects: map[string][]byte{"uploads/job-1.jpg": []byte("garbage")}}
	processor := &fakeProcessor{err: pipeline.ErrDecode}
	s, jobs := newTestServer(t, source, processor)

	err := s.handleTransformImage(context.Background(), transformTask(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, asynq.SkipRetry)

	job, _, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "decode image")
	assert.Empty(t, job.OutputKey)
}

func TestHandleTransformImageRecordsDeliveryFailure(t *testing.T) {
	source := &fakeSource{objects: map[string][]byte{"uploads/job-1.jpg": []byte("jpeg")}}
	processor := &fakeProcessor{outcome: handler.Outcome{
		Result:    pipeline.Result{Data: []byte("out"), Width: 10, Height: 10},
		ObjectKey: "abc.jpg",
		Delivery:  handler.DeliveryNotificationFailed,
		Err:       handler.ErrNotification,
	}}
	s, jobs := newTestServer(t, source, processor)

	err := s.handleTransformImage(context.Background(), transformTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)

	job, _, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, "abc.jpg", job.OutputKey)
	assert.Equal(t, "notification_failed", job.Delivery)
	assert.NotEmpty(t, job.Error)
}

func TestHandleTransformImageSourceMissing(t *testing.T) {
	s, jobs := newTestServer(t, &fakeSource{err: errors.New("boom")}, &fakeProcessor{})

	err := s.handleTransformImage(context.Background(), transformTask(t))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	job, _, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "boom")
}

func TestHandleTransformImageRejectsBadPayload(t *testing.T) {
	s, _ := newTestServer(t, &fakeSource{}, &fakeProcessor{})

	err := s.handleTransformImage(context.Background(), asynq.NewTask(queue.TypeTransformImage, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestHandleTransformImageMissingSourceSkipsRetry(t *testing.T) {
	processor := &fakeProcessor{}
	s, jobs := newTestServer(t, &fakeSource{objects: map[string][]byte{}}, processor)

	err := s.handleTransformImage(context.Background(), transformTask(t))
	require.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorContains(t, err, "source image missing")
	assert.Nil(t, processor.input)

	job, _, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Contains(t, job.Error, "uploads/job-1.jpg")
}

func TestHandleTransformImageIgnoresFinishedJob(t *testing.T) {
	source := &fakeSource{objects: map[string][]byte{"uploads/job-1.jpg": []byte("jpeg")}}
	processor := &fakeProcessor{}
	s, jobs := newTestServer(t, source, processor)

	_, err := jobs.Complete(context.Background(), "job-1", domain.JobResult{
		Status:    domain.JobStatusSucceeded,
		OutputKey: "done.jpg",
		Delivery:  "completed",
	})
	require.NoError(t, err)

	require.NoError(t, s.handleTransformImage(context.Background(), transformTask(t)))
	assert.Nil(t, processor.input)

	job, _, _ := jobs.Get(context.Background(), "job-1")
	assert.Equal(t, domain.JobStatusSucceeded, job.Status)
	assert.Equal(t, "done.jpg", job.OutputKey)
	assert.Equal(t, float64(1), testutil.ToFloat64(s.metrics.jobsTotal.WithLabelValues("skipped", "none")))
}
