//go:build govips && cgo

package pipeline

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

type govipsTransformer struct {
	permuter Permuter
}

func (t govipsTransformer) Transform(ctx context.Context, input []byte) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	if vips.DetermineImageType(input) != vips.ImageTypeJPEG {
		return Result{}, fmt.Errorf("%w: input is not a JPEG", ErrDecode)
	}

	if err := CheckPixelLimit(input); err != nil {
		return Result{}, err
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer img.Close()

	if img.Bands() != 3 {
		return Result{}, fmt.Errorf("%w: expected 3 channel planes, got %d", ErrUnsupportedFormat, img.Bands())
	}

	if err := applyGovipsShuffle(img, t.permuter); err != nil {
		return Result{}, err
	}
	if err := applyGovipsResize(img); err != nil {
		return Result{}, err
	}

	params := vips.NewJpegExportParams()
	params.Quality = JPEGQuality
	data, _, err := img.ExportJpeg(params)
	if err != nil {
		return Result{}, fmt.Errorf("encode jpeg: %w", err)
	}

	return Result{
		Data:   data,
		Base64: EncodeBase64(data),
		Width:  img.Width(),
		Height: img.Height(),
	}, nil
}

// applyGovipsShuffle reorders bands with a permutation matrix: output band
// slot takes input band perm[slot].
func applyGovipsShuffle(img *vips.ImageRef, permuter Permuter) error {
	perm, err := drawPermutation(permuter, img.Bands())
	if err != nil {
		return err
	}

	matrix := make([][]float64, len(perm))
	for slot, from := range perm {
		matrix[slot] = make([]float64, len(perm))
		matrix[slot][from] = 1
	}

	if err := img.Recomb(matrix); err != nil {
		return fmt.Errorf("shuffle channels: %w", err)
	}
	if err := img.Cast(vips.BandFormatUchar); err != nil {
		return fmt.Errorf("cast shuffled image: %w", err)
	}
	return nil
}

func applyGovipsResize(img *vips.ImageRef) error {
	if img.Width() <= 0 || img.Height() <= 0 {
		return fmt.Errorf("source image has invalid dimensions")
	}

	scale := boundingScale(img.Width(), img.Height())
	if scale >= 1 {
		return nil
	}

	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}
