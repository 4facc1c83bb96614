package frame

import (
	"bytes"
	"testing"
)

func TestFullFrame(t *testing.T) {
	r := FullFrame(1920, 1080)

	if r.X != 0 || r.Y != 0 {
		t.Fatalf("expected origin (0,0), got (%d,%d)", r.X, r.Y)
	}
	if r.Width != 1920 || r.Height != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", r.Width, r.Height)
	}
	if r.Area() != 1920*1080 {
		t.Fatalf("expected area %d, got %d", 1920*1080, r.Area())
	}
}

func TestAreaDoesNotOverflow(t *testing.T) {
	r := FullFrame(65535, 65535)

	want := uint64(65535) * uint64(65535)
	if r.Area() != want {
		t.Fatalf("expected area %d, got %d", want, r.Area())
	}
}

func TestEnsureAlphaOpaqueBGRA(t *testing.T) {
	f := CapturedFrame{
		Data:   []byte{1, 2, 3, 0, 5, 6, 7, 42},
		Width:  2,
		Height: 1,
		Format: FormatBGRA,
		Stride: 8,
	}

	f.EnsureAlphaOpaque()

	want := []byte{1, 2, 3, 0xFF, 5, 6, 7, 0xFF}
	if !bytes.Equal(f.Data, want) {
		t.Fatalf("expected %v, got %v", want, f.Data)
	}
}

func TestEnsureAlphaOpaqueSkipsRGBA(t *testing.T) {
	data := []byte{1, 2, 3, 0, 5, 6, 7, 42}
	f := CapturedFrame{
		Data:   append([]byte(nil), data...),
		Width:  2,
		Height: 1,
		Format: FormatRGBA,
		Stride: 8,
	}

	f.EnsureAlphaOpaque()

	if !bytes.Equal(f.Data, data) {
		t.Fatalf("RGBA frame modified: got %v", f.Data)
	}
}

func TestBytesPerPixel(t *testing.T) {
	for _, format := range []PixelFormat{FormatBGRA, FormatRGBA} {
		if bpp := format.BytesPerPixel(); bpp != 4 {
			t.Fatalf("%s: expected 4 bytes per pixel, got %d", format, bpp)
		}
	}
}
