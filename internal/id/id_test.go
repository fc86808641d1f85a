package id

import (
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReturnsUniqueV4(t *testing.T) {
	a, b := New(), New()
	assert.NotEqual(t, a, b)

	parsed, err := uuid.FromString(a)
	require.NoError(t, err)
	assert.Equal(t, byte(uuid.V4), parsed.Version())
}
