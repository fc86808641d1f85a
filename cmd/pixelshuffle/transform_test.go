package main

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dunamismax/pixelshuffle/internal/pipeline"
)

func writeJPEG(t *testing.T, path string, w, h int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func runCLI(t *testing.T, args ...string) error {
	t.Helper()

	var stderr bytes.Buffer
	rootCmd.SetArgs(args)
	rootCmd.SetErr(&stderr)
	rootCmd.SetOut(&stderr)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		for _, name := range []string{"seed", "base64"} {
			f := transformCmd.Flags().Lookup(name)
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	})
	return rootCmd.Execute()
}

func TestTransformCommandIsDeterministicWithSeed(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jpg")
	writeJPEG(t, in, 600, 300)

	first := filepath.Join(dir, "a.jpg")
	second := filepath.Join(dir, "b.jpg")
	require.NoError(t, runCLI(t, "transform", "-i", in, "-o", first, "--seed", "42"))
	require.NoError(t, runCLI(t, "transform", "-i", in, "-o", second, "--seed", "42"))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(a))
	require.NoError(t, err)
	assert.Equal(t, 512, cfg.Width)
	assert.Equal(t, 256, cfg.Height)
}

func TestTransformCommandBase64(t *testing.T) {
	dir := t.TempDir()
	raw := filepath.Join(dir, "in.jpg")
	writeJPEG(t, raw, 32, 16)

	data, err := os.ReadFile(raw)
	require.NoError(t, err)
	in := filepath.Join(dir, "in.b64")
	require.NoError(t, os.WriteFile(in, []byte(pipeline.EncodeBase64(data)), 0o644))

	out := filepath.Join(dir, "out.b64")
	require.NoError(t, runCLI(t, "transform", "-i", in, "-o", out, "--base64"))

	text, err := os.ReadFile(out)
	require.NoError(t, err)
	decoded, err := pipeline.DecodeBase64(string(text))
	require.NoError(t, err)

	cfg, err := jpeg.DecodeConfig(bytes.NewReader(decoded))
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.Width)
	assert.Equal(t, 16, cfg.Height)
}

func TestTransformCommandRejectsNonJPEG(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(in, []byte("hello"), 0o644))

	err := runCLI(t, "transform", "-i", in, "-o", filepath.Join(dir, "out.jpg"))
	require.ErrorIs(t, err, pipeline.ErrDecode)
}
