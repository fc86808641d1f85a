package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelshuffle/internal/storage"
)

func TestUploadStorageNilClientIsNilInterface(t *testing.T) {
	assert.True(t, uploadStorage(nil) == nil)

	client, err := storage.NewClient(storage.Config{Endpoint: "localhost:9000", Region: "us-east-1", Bucket: "images"})
	require.NoError(t, err)
	assert.Same(t, client, uploadStorage(client))
}
