package pipeline

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"testing"

	"github.com/stretchr/testify/require"
)

type fixedPermuter []int

func (p fixedPermuter) Perm(int) []int {
	return append([]int(nil), p...)
}

func buildTestJPEG(tb testing.TB, w, h int, c color.RGBA) []byte {
	tb.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}

	var buf bytes.Buffer
	require.NoError(tb, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func buildGradientJPEG(tb testing.TB, w, h int) []byte {
	tb.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	require.NoError(tb, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

// constantImage builds a 3-plane image where every sample of plane i equals
// values[i].
func constantImage(t *testing.T, w, h int, values ...uint8) *Image {
	t.Helper()

	planes := make([]*Plane, len(values))
	for i, v := range values {
		planes[i] = NewPlane(w, h)
		for j := range planes[i].Pix {
			planes[i].Pix[j] = v
		}
	}

	img, err := NewImage(w, h, planes...)
	require.NoError(t, err)
	return img
}

func meanChannels(t *testing.T, data []byte) (r, g, b float64, bounds image.Rectangle) {
	t.Helper()

	img, err := jpeg.Decode(bytes.NewReader(data))
	require.NoError(t, err)

	bounds = img.Bounds()
	n := float64(bounds.Dx() * bounds.Dy())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			r += float64(cr >> 8)
			g += float64(cg >> 8)
			b += float64(cb >> 8)
		}
	}
	return r / n, g / n, b / n, bounds
}
