package pipeline

import (
	"fmt"
	"math/rand/v2"
)

// Permuter draws a permutation of [0, n). *rand.Rand from math/rand/v2
// satisfies it, so tests can pass a seeded source.
type Permuter interface {
	Perm(n int) []int
}

// DefaultPermuter draws from the process-wide math/rand/v2 source.
var DefaultPermuter Permuter = globalPermuter{}

type globalPermuter struct{}

func (globalPermuter) Perm(n int) []int {
	return rand.Perm(n)
}

// Shuffle returns a new Image whose red, green and blue slots hold the source
// planes in a random order. Planes are shared with img, not copied.
func Shuffle(img *Image, src Permuter) (*Image, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil image", ErrUnsupportedFormat)
	}
	if len(img.Planes) != 3 {
		return nil, fmt.Errorf("%w: expected 3 channel planes, got %d", ErrUnsupportedFormat, len(img.Planes))
	}

	perm, err := drawPermutation(src, len(img.Planes))
	if err != nil {
		return nil, err
	}

	planes := make([]*Plane, len(perm))
	for slot, from := range perm {
		planes[slot] = img.Planes[from]
	}

	return &Image{Width: img.Width, Height: img.Height, Planes: planes}, nil
}

func drawPermutation(src Permuter, n int) ([]int, error) {
	if src == nil {
		src = DefaultPermuter
	}

	perm := src.Perm(n)
	if len(perm) != n {
		return nil, fmt.Errorf("permuter returned %d positions, want %d", len(perm), n)
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return nil, fmt.Errorf("permuter returned invalid permutation %v", perm)
		}
		seen[p] = true
	}
	return perm, nil
}
