// Package frame defines the value types flowing through the capture pipeline:
// captured frames, their pixel layout, damage regions and cursor updates.
package frame

// DamageRect is a rectangular region of changed pixels.
type DamageRect struct {
	X      int32
	Y      int32
	Width  uint32
	Height uint32
}

// NewDamageRect creates a damage rectangle.
func NewDamageRect(x, y int32, width, height uint32) DamageRect {
	return DamageRect{X: x, Y: y, Width: width, Height: height}
}

// FullFrame returns a damage rect covering the whole frame.
func FullFrame(width, height uint32) DamageRect {
	return NewDamageRect(0, 0, width, height)
}

// Area returns the rectangle area in pixels. Computed in 64 bits so large
// displays cannot overflow.
func (r DamageRect) Area() uint64 {
	return uint64(r.Width) * uint64(r.Height)
}

// PixelFormat identifies the byte layout of captured pixel data.
type PixelFormat int

const (
	// FormatBGRA is BGRA with 8 bits per channel (PipeWire BGRx with the
	// padding byte forced to 0xFF).
	FormatBGRA PixelFormat = iota
	// FormatRGBA is RGBA with 8 bits per channel.
	FormatRGBA
)

// BytesPerPixel returns the pixel size in bytes for the format.
func (f PixelFormat) BytesPerPixel() int {
	return 4
}

func (f PixelFormat) String() string {
	switch f {
	case FormatBGRA:
		return "BGRA"
	case FormatRGBA:
		return "RGBA"
	default:
		return "unknown"
	}
}

// CapturedFrame is a single captured video frame.
type CapturedFrame struct {
	// Data holds raw pixel data, row-major, top-to-bottom.
	Data []byte
	// Width and Height are the frame dimensions in pixels.
	Width  uint32
	Height uint32
	// Format is the pixel layout of Data.
	Format PixelFormat
	// Stride is the row length in bytes, including any padding.
	Stride uint32
	// Sequence increases monotonically within a capture session. Consumers
	// use gaps to detect dropped frames.
	Sequence uint64
	// Damage lists the regions changed since the previous frame. A nil
	// slice means no damage info was available (treat as a full-frame
	// update); an empty non-nil slice means the frame is identical to the
	// previous one.
	Damage []DamageRect
}

// EnsureAlphaOpaque forces the alpha channel to 0xFF for BGRA frames.
//
// PipeWire typically delivers BGRx where the padding byte is undefined, so it
// must be normalized before any consumer interprets it as alpha. RGBA frames
// are left untouched.
func (f *CapturedFrame) EnsureAlphaOpaque() {
	if f.Format != FormatBGRA {
		return
	}
	for i := 3; i < len(f.Data); i += 4 {
		f.Data[i] = 0xFF
	}
}

// CursorBitmap is an optional cursor image carried by cursor metadata.
type CursorBitmap struct {
	Width  uint32
	Height uint32
	Format PixelFormat
	Data   []byte
}

// CursorInfo describes a cursor update extracted from buffer side-channel
// metadata. Position is in frame coordinates; the hotspot offsets into the
// bitmap.
type CursorInfo struct {
	X        int32
	Y        int32
	HotspotX int32
	HotspotY int32
	Bitmap   *CursorBitmap
}

// CaptureEvent is the unit delivered on the capture channel: a frame plus an
// optional accompanying cursor update.
type CaptureEvent struct {
	Frame  CapturedFrame
	Cursor *CursorInfo
}
