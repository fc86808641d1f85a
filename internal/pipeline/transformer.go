package pipeline

import (
	"context"
)

// Result is the outcome of one transform: the encoded JPEG and its base64
// text, plus the output dimensions.
type Result struct {
	Data   []byte
	Base64 string
	Width  int
	Height int
}

// Transformer runs decode, channel shuffle, resize and encode over one input.
type Transformer interface {
	Transform(ctx context.Context, input []byte) (Result, error)
}

type stdlibTransformer struct {
	permuter Permuter
}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	img, err := Decode(input)
	if err != nil {
		return Result{}, err
	}

	img, err = Shuffle(img, t.permuter)
	if err != nil {
		return Result{}, err
	}

	if err := Resize(img); err != nil {
		return Result{}, err
	}

	data, err := Encode(img)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Data:   data,
		Base64: EncodeBase64(data),
		Width:  img.Width,
		Height: img.Height,
	}, nil
}
