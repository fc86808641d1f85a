package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode reports input bytes that are not a decodable JPEG.
	ErrDecode = errors.New("decode image")
	// ErrUnsupportedFormat reports an image that is not made of exactly three
	// color channels.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrImageTooLarge reports a header declaring more than MaxPixels. It also
	// matches ErrUnsupportedFormat.
	ErrImageTooLarge = fmt.Errorf("%w: image too large", ErrUnsupportedFormat)
)
