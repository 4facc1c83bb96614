package encode

import "github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"

// BitmapEncoder passes frames through without compression, for protocol
// servers that only take raw bitmap updates.
type BitmapEncoder struct {
	width  uint32
	height uint32
}

// NewBitmap creates a bitmap pass-through encoder.
func NewBitmap(width, height uint32) *BitmapEncoder {
	return &BitmapEncoder{width: width, height: height}
}

// Encode normalizes the alpha channel and forwards the frame's bytes
// unchanged. The transport's padding byte is undefined, so it must be forced
// opaque before any consumer treats it as alpha.
func (e *BitmapEncoder) Encode(f *frame.CapturedFrame) (*Output, error) {
	f.EnsureAlphaOpaque()
	return &Output{
		Data:     f.Data,
		Codec:    CodecRaw,
		Width:    f.Width,
		Height:   f.Height,
		Sequence: f.Sequence,
	}, nil
}

// Resize updates the tracked geometry.
func (e *BitmapEncoder) Resize(width, height uint32) {
	e.width = width
	e.height = height
}

// Width returns the tracked frame width.
func (e *BitmapEncoder) Width() uint32 { return e.width }

// Height returns the tracked frame height.
func (e *BitmapEncoder) Height() uint32 { return e.height }
