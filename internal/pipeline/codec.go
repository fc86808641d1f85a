package pipeline

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"
	"strings"
)

// JPEGQuality is the quality every transformed image is encoded with.
const JPEGQuality = jpeg.DefaultQuality

// MaxPixels caps width*height of accepted inputs. Larger images are refused
// from their header, before any pixel buffer is allocated.
const MaxPixels = 178_956_970

// Decode parses JPEG bytes into a 3-plane Image.
func Decode(data []byte) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrDecode)
	}

	if err := CheckPixelLimit(data); err != nil {
		return nil, err
	}

	src, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return FromRaster(src)
}

// CheckPixelLimit reads only the JPEG frame header and rejects images whose
// declared size exceeds MaxPixels.
func CheckPixelLimit(data []byte) error {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if pixels := int64(cfg.Width) * int64(cfg.Height); pixels > MaxPixels {
		return fmt.Errorf("%w: %dx%d is %d pixels, limit is %d", ErrImageTooLarge, cfg.Width, cfg.Height, pixels, MaxPixels)
	}
	return nil
}

// Encode renders img as a JPEG at JPEGQuality.
func Encode(img *Image) ([]byte, error) {
	rgba, err := img.RGBA()
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, rgba, &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeBase64 uses the standard padded alphabet without line wrapping.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 reverses EncodeBase64. Surrounding whitespace is ignored.
func DecodeBase64(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid base64 body: %v", ErrDecode, err)
	}
	return data, nil
}
