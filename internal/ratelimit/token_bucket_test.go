package ratelimit

import (
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisTokenBucketValidates(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })

	_, err := NewRedisTokenBucket(nil, 10, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, 0, time.Minute, "")
	require.Error(t, err)
	_, err = NewRedisTokenBucket(client, 10, 0, "")
	require.Error(t, err)

	limiter, err := NewRedisTokenBucket(client, 30, time.Minute, " ")
	require.NoError(t, err)
	assert.Equal(t, DefaultKeyPrefix, limiter.keyPrefix)
	assert.InDelta(t, 30.0/60000.0, limiter.refillPerMS, 1e-12)
	assert.Equal(t, 2*time.Minute, limiter.ttl)
}

func TestTokenBucketKey(t *testing.T) {
	limiter := &RedisTokenBucket{keyPrefix: "p"}

	assert.Equal(t, "p:user-1:/v1/jobs", limiter.key(" user-1:/v1/jobs "))
	assert.Equal(t, "p:anonymous", limiter.key(""))
}

func TestParseDecision(t *testing.T) {
	decision, err := parseDecision([]any{int64(1), int64(29), int64(0)})
	require.NoError(t, err)
	assert.True(t, decision.Allowed)
	assert.Equal(t, int64(29), decision.Remaining)
	assert.Zero(t, decision.RetryAfter)

	decision, err = parseDecision([]any{int64(0), "0", float64(1500)})
	require.NoError(t, err)
	assert.False(t, decision.Allowed)
	assert.Equal(t, 1500*time.Millisecond, decision.RetryAfter)

	_, err = parseDecision([]any{int64(1)})
	require.Error(t, err)
	_, err = parseDecision("nope")
	require.Error(t, err)
	_, err = parseDecision([]any{int64(1), []byte("x"), int64(0)})
	require.Error(t, err)
}
