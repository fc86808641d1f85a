package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPostgresJobStoreFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := NewPostgresJobStore(ctx, "postgres://pixelshuffle@127.0.0.1:1/pixelshuffle?sslmode=disable&connect_timeout=1")
	require.Error(t, err)
	require.ErrorContains(t, err, "ping postgres")
}
