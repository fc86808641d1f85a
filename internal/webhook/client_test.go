package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendAddsSigningHeaders(t *testing.T) {
	var (
		gotSig string
		gotTS  string
		gotEvt string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		gotTS = r.Header.Get(HeaderTimestamp)
		gotEvt = r.Header.Get(HeaderEvent)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(Config{
		SigningSecret: "test-secret",
		Timeout:       2 * time.Second,
	})

	err := client.Send(context.Background(), srv.URL, EventImageTransformed, map[string]any{"key": "a.jpg"})
	require.NoError(t, err)

	assert.NotEmpty(t, gotSig)
	assert.NotEmpty(t, gotTS)
	assert.Equal(t, EventImageTransformed, gotEvt)
}

func TestSendWithoutSecretOmitsSignature(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get(HeaderSignature)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, NewClient(Config{}).Send(context.Background(), srv.URL, "", struct{}{}))
	assert.Empty(t, gotSig)
}

func TestSendFailsOnNon2xx(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewClient(Config{}).Send(context.Background(), srv.URL, "", map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=502")
	assert.Equal(t, 1, calls)
}

func TestSendRequiresEndpoint(t *testing.T) {
	err := NewClient(Config{}).Send(context.Background(), "  ", "", nil)
	require.ErrorIs(t, err, ErrEndpointMissing)
}

func TestSlackNotifierPostsMessage(t *testing.T) {
	var (
		gotBody        map[string]string
		gotContentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewSlackNotifier(NewClient(Config{}), srv.URL)
	msg := TransformedImageMessage("@alice", "abc.jpg", "lambda-transformed-images")

	require.NoError(t, notifier.Notify(context.Background(), msg))

	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "@alice", gotBody["user"])
	assert.Equal(t, `You have a new transformed image "abc.jpg" in S3 bucket "lambda-transformed-images"`, gotBody["message"])
}

func TestSlackNotifierWithoutEndpoint(t *testing.T) {
	notifier := NewSlackNotifier(NewClient(Config{}), "")
	err := notifier.Notify(context.Background(), Message{User: "bob", Text: "hi"})
	require.ErrorIs(t, err, ErrEndpointMissing)
}
