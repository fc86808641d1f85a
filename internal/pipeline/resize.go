package pipeline

import (
	"fmt"
	"image"
	"math"

	"golang.org/x/image/draw"
)

// MaxDimension bounds both sides of a transformed image.
const MaxDimension = 512

// BoundingSize returns the dimensions w×h scales to when fitted inside a
// MaxDimension box without upscaling.
func BoundingSize(w, h int) (int, int) {
	scale := boundingScale(w, h)
	if scale >= 1 {
		return w, h
	}
	return max(1, int(math.Round(float64(w)*scale))), max(1, int(math.Round(float64(h)*scale)))
}

func boundingScale(w, h int) float64 {
	return math.Min(1, math.Min(float64(MaxDimension)/float64(w), float64(MaxDimension)/float64(h)))
}

// Resize shrinks img in place to fit a MaxDimension box, keeping the aspect
// ratio. Images that already fit are left untouched.
func Resize(img *Image) error {
	if img.Width < 1 || img.Height < 1 {
		return fmt.Errorf("image has invalid dimensions %dx%d", img.Width, img.Height)
	}

	width, height := BoundingSize(img.Width, img.Height)
	if width == img.Width && height == img.Height {
		return nil
	}

	src, err := img.RGBA()
	if err != nil {
		return err
	}

	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Rect, src, src.Bounds(), draw.Src, nil)

	img.Width = width
	img.Height = height
	img.Planes = planesFromRGBA(dst)
	return nil
}
