// Package encode routes captured frames through interchangeable encoders:
// a raw bitmap pass-through and an H.264 path. Which one serves a session is
// decided by configuration after protocol capability negotiation, so both
// satisfy the same contract.
package encode

import (
	"fmt"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
)

// Codec identifies the encoding applied to an Output.
type Codec int

const (
	// CodecRaw is uncompressed BGRA pass-through.
	CodecRaw Codec = iota
	// CodecH264 is an H.264 elementary stream.
	CodecH264
)

func (c Codec) String() string {
	switch c {
	case CodecRaw:
		return "raw"
	case CodecH264:
		return "h264"
	default:
		return "unknown"
	}
}

// ParseCodec maps a configuration string to a Codec.
func ParseCodec(s string) (Codec, error) {
	switch s {
	case "raw", "bitmap", "":
		return CodecRaw, nil
	case "h264":
		return CodecH264, nil
	default:
		return 0, fmt.Errorf("encode: unknown codec %q", s)
	}
}

// Output is one encoded frame ready for protocol delivery.
type Output struct {
	Data     []byte
	Codec    Codec
	Width    uint32
	Height   uint32
	Sequence uint64
}

// Encoder consumes captured frames and produces protocol-ready output.
//
// Resize keeps the tracked geometry in sync with the negotiated stream size;
// it is an idempotent setter and does not reprocess frames already encoded.
type Encoder interface {
	Encode(f *frame.CapturedFrame) (*Output, error)
	Resize(width, height uint32)
	Width() uint32
	Height() uint32
}

// New returns the encoder variant for the given codec.
func New(codec Codec, width, height uint32) (Encoder, error) {
	switch codec {
	case CodecRaw:
		return NewBitmap(width, height), nil
	case CodecH264:
		return NewH264(width, height)
	default:
		return nil, fmt.Errorf("encode: unknown codec %d", codec)
	}
}
