package pipeline

import (
	"fmt"
	"image"
	"image/color"
)

// Plane is a single 8-bit channel of an Image stored row-major.
type Plane struct {
	Width  int
	Height int
	Pix    []uint8
}

func NewPlane(width, height int) *Plane {
	return &Plane{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, width*height),
	}
}

func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

// Image is an in-memory raster made of independent channel planes. A
// well-formed Image carries exactly three planes (red, green, blue) that all
// share the image dimensions.
type Image struct {
	Width  int
	Height int
	Planes []*Plane
}

func NewImage(width, height int, planes ...*Plane) (*Image, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("image dimensions must be positive, got %dx%d", width, height)
	}
	for i, p := range planes {
		if p == nil {
			return nil, fmt.Errorf("plane %d is nil", i)
		}
		if p.Width != width || p.Height != height {
			return nil, fmt.Errorf("plane %d is %dx%d, image is %dx%d", i, p.Width, p.Height, width, height)
		}
		if len(p.Pix) != width*height {
			return nil, fmt.Errorf("plane %d has %d samples, want %d", i, len(p.Pix), width*height)
		}
	}
	return &Image{Width: width, Height: height, Planes: planes}, nil
}

// FromRaster splits a decoded raster into red, green and blue planes. Rasters
// whose color model is not a plain 3-channel model are rejected.
func FromRaster(src image.Image) (*Image, error) {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w < 1 || h < 1 {
		return nil, fmt.Errorf("%w: empty raster", ErrDecode)
	}

	r, g, b := NewPlane(w, h), NewPlane(w, h), NewPlane(w, h)

	switch m := src.(type) {
	case *image.YCbCr:
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				c := m.YCbCrAt(bounds.Min.X+x, bounds.Min.Y+y)
				i := y*w + x
				r.Pix[i], g.Pix[i], b.Pix[i] = color.YCbCrToRGB(c.Y, c.Cb, c.Cr)
			}
		}
	case *image.Gray, *image.Gray16:
		return nil, fmt.Errorf("%w: single-channel grayscale image", ErrUnsupportedFormat)
	case *image.CMYK:
		return nil, fmt.Errorf("%w: 4-channel CMYK image", ErrUnsupportedFormat)
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		return nil, fmt.Errorf("%w: image carries an alpha channel", ErrUnsupportedFormat)
	default:
		return nil, fmt.Errorf("%w: color model %T", ErrUnsupportedFormat, src.ColorModel())
	}

	return &Image{Width: w, Height: h, Planes: []*Plane{r, g, b}}, nil
}

// RGBA assembles the planes into an opaque raster in red, green, blue slot
// order.
func (img *Image) RGBA() (*image.RGBA, error) {
	if len(img.Planes) != 3 {
		return nil, fmt.Errorf("%w: image has %d channel planes", ErrUnsupportedFormat, len(img.Planes))
	}

	dst := image.NewRGBA(image.Rect(0, 0, img.Width, img.Height))
	r, g, b := img.Planes[0].Pix, img.Planes[1].Pix, img.Planes[2].Pix
	for i, j := 0, 0; i < len(r); i, j = i+1, j+4 {
		dst.Pix[j] = r[i]
		dst.Pix[j+1] = g[i]
		dst.Pix[j+2] = b[i]
		dst.Pix[j+3] = 0xff
	}
	return dst, nil
}

func planesFromRGBA(src *image.RGBA) []*Plane {
	w, h := src.Rect.Dx(), src.Rect.Dy()
	r, g, b := NewPlane(w, h), NewPlane(w, h), NewPlane(w, h)
	for y := 0; y < h; y++ {
		row := src.Pix[y*src.Stride : y*src.Stride+w*4]
		for x := 0; x < w; x++ {
			i := y*w + x
			r.Pix[i] = row[x*4]
			g.Pix[i] = row[x*4+1]
			b.Pix[i] = row[x*4+2]
		}
	}
	return []*Plane{r, g, b}
}
