//go:build govips && cgo

package pipeline

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovipsTransformMatchesBoundingSize(t *testing.T) {
	transformer, err := NewTransformer(fixedPermuter{0, 1, 2})
	require.NoError(t, err)
	require.IsType(t, govipsTransformer{}, transformer)

	result, err := transformer.Transform(context.Background(), buildGradientJPEG(t, 1024, 512))
	require.NoError(t, err)

	assert.Equal(t, 512, result.Width)
	assert.Equal(t, 256, result.Height)
	_, _, _, bounds := meanChannels(t, result.Data)
	assert.Equal(t, 512, bounds.Dx())
	assert.Equal(t, 256, bounds.Dy())

	wantW, wantH := BoundingSize(1000, 333)
	result, err = transformer.Transform(context.Background(), buildGradientJPEG(t, 1000, 333))
	require.NoError(t, err)
	assert.Equal(t, wantW, result.Width)
	assert.Equal(t, wantH, result.Height)
}

func TestGovipsTransformAppliesPermutation(t *testing.T) {
	transformer, err := NewTransformer(fixedPermuter{2, 0, 1})
	require.NoError(t, err)

	result, err := transformer.Transform(context.Background(), buildTestJPEG(t, 64, 64, color.RGBA{R: 255, A: 255}))
	require.NoError(t, err)

	// red lands in the green slot, same as the pure-Go backend
	r, g, b, _ := meanChannels(t, result.Data)
	assert.Less(t, r, 50.0)
	assert.Greater(t, g, 200.0)
	assert.Less(t, b, 50.0)

	back, err := DecodeBase64(result.Base64)
	require.NoError(t, err)
	assert.Equal(t, result.Data, back)
}

func TestGovipsTransformRejectsBadInput(t *testing.T) {
	transformer, err := NewTransformer(nil)
	require.NoError(t, err)

	_, err = transformer.Transform(context.Background(), []byte("hello"))
	require.ErrorIs(t, err, ErrDecode)

	_, err = transformer.Transform(context.Background(), withFrameSize(t, buildTestJPEG(t, 16, 16, color.RGBA{A: 255}), 65535, 65535))
	require.ErrorIs(t, err, ErrImageTooLarge)
}
