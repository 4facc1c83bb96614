package encode

import (
	"bytes"
	"testing"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
)

func TestBitmapPassThrough(t *testing.T) {
	enc := NewBitmap(2, 1)
	f := &frame.CapturedFrame{
		Data:     []byte{1, 2, 3, 0, 5, 6, 7, 9},
		Width:    2,
		Height:   1,
		Format:   frame.FormatBGRA,
		Stride:   8,
		Sequence: 3,
	}

	out, err := enc.Encode(f)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	if out.Codec != CodecRaw {
		t.Fatalf("expected raw codec, got %s", out.Codec)
	}
	if out.Width != 2 || out.Height != 1 || out.Sequence != 3 {
		t.Fatalf("output metadata mismatch: %+v", out)
	}

	// Pass-through, but with the alpha channel normalized.
	want := []byte{1, 2, 3, 0xFF, 5, 6, 7, 0xFF}
	if !bytes.Equal(out.Data, want) {
		t.Fatalf("expected %v, got %v", want, out.Data)
	}
}

func TestBitmapResizeIsIdempotentSetter(t *testing.T) {
	enc := NewBitmap(1920, 1080)

	enc.Resize(2560, 1440)
	enc.Resize(2560, 1440)

	if enc.Width() != 2560 || enc.Height() != 1440 {
		t.Fatalf("expected 2560x1440, got %dx%d", enc.Width(), enc.Height())
	}
}

func TestBitmapResizeDoesNotAlterFrames(t *testing.T) {
	enc := NewBitmap(1920, 1080)
	f := &frame.CapturedFrame{
		Data:   []byte{9, 9, 9, 9},
		Width:  1,
		Height: 1,
		Format: frame.FormatRGBA,
		Stride: 4,
	}

	before, err := enc.Encode(f)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	enc.Resize(2560, 1440)
	after, err := enc.Encode(f)
	if err != nil {
		t.Fatalf("encode failed after resize: %v", err)
	}

	if !bytes.Equal(before.Data, after.Data) {
		t.Fatal("resize altered frame bytes")
	}
}

func TestParseCodec(t *testing.T) {
	cases := map[string]Codec{
		"":       CodecRaw,
		"raw":    CodecRaw,
		"bitmap": CodecRaw,
		"h264":   CodecH264,
	}
	for in, want := range cases {
		got, err := ParseCodec(in)
		if err != nil {
			t.Fatalf("%q: unexpected error %v", in, err)
		}
		if got != want {
			t.Fatalf("%q: expected %s, got %s", in, want, got)
		}
	}

	if _, err := ParseCodec("vp9"); err == nil {
		t.Fatal("expected error for unknown codec")
	}
}
