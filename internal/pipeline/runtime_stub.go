//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

// NewTransformer returns the pure-Go transformer. A nil permuter falls back to
// DefaultPermuter.
func NewTransformer(permuter Permuter) (Transformer, error) {
	return stdlibTransformer{permuter: permuter}, nil
}
