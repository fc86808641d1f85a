package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelshuffle/internal/config"
	"github.com/dunamismax/pixelshuffle/internal/store"
	"github.com/dunamismax/pixelshuffle/internal/webhook"
)

func TestNewNotifier(t *testing.T) {
	assert.Nil(t, NewNotifier(config.NotifyConfig{}, zerolog.Nop()))

	n := NewNotifier(config.NotifyConfig{WebhookURL: "https://hooks.slack.test/x"}, zerolog.Nop())
	assert.IsType(t, &webhook.SlackNotifier{}, n)
}

func TestNewJobStoreDefaultsToMemory(t *testing.T) {
	jobs, closeFn, err := NewJobStore(context.Background(), config.DatabaseConfig{}, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, closeFn)
	defer closeFn()
	assert.IsType(t, &store.MemoryJobStore{}, jobs)
}

func TestNewHandler(t *testing.T) {
	cfg := config.Config{
		Storage: config.StorageConfig{
			Endpoint: "127.0.0.1:9000",
			Region:   "us-east-1",
			Bucket:   "images",
		},
	}

	h, storageClient, err := NewHandler(cfg, zerolog.Nop())
	require.NoError(t, err)
	require.NotNil(t, h)
	require.NotNil(t, storageClient)
	assert.Equal(t, "images", storageClient.Bucket())

	cfg.Storage.Bucket = ""
	h, storageClient, err = NewHandler(cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Nil(t, storageClient)
}

func TestTraceConfig(t *testing.T) {
	tc := TraceConfig(config.TelemetryConfig{ServiceName: "svc", Exporter: "stdout"})
	assert.Equal(t, "svc", tc.ServiceName)
	assert.Equal(t, "stdout", tc.Exporter)
}

func TestPrepareStorageSkipsAWSAndNilClient(t *testing.T) {
	require.NoError(t, PrepareStorage(context.Background(), nil, "localhost:9000", zerolog.Nop()))

	client, err := NewStorage(config.StorageConfig{Endpoint: "s3.amazonaws.com", Region: "us-east-1", Bucket: "images"})
	require.NoError(t, err)
	// no request is made, so an unreachable AWS endpoint still succeeds
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, PrepareStorage(ctx, client, "s3.amazonaws.com", zerolog.Nop()))
}

func TestPrepareStorageCreatesBucketOnCustomEndpoint(t *testing.T) {
	var methods []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		methods = append(methods, r.Method)
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	endpoint := strings.TrimPrefix(srv.URL, "http://")
	client, err := NewStorage(config.StorageConfig{
		Endpoint:  endpoint,
		AccessKey: "a",
		SecretKey: "b",
		Region:    "us-east-1",
		Bucket:    "images",
	})
	require.NoError(t, err)

	require.NoError(t, PrepareStorage(context.Background(), client, endpoint, zerolog.Nop()))
	assert.Equal(t, []string{http.MethodHead, http.MethodPut}, methods)
}
