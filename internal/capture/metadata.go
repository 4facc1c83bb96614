package capture

import "github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"

// Metadata is what a MetadataExtractor recovers from a buffer's side-channel
// metadata. A nil Damage slice means no damage info (full-frame update); a
// nil Cursor means no cursor update accompanies the frame.
type Metadata struct {
	Damage []frame.DamageRect
	Cursor *frame.CursorInfo
}

// MetadataExtractor reads optional damage and cursor metadata attached to a
// transport buffer.
//
// Extraction must never fail the frame: on any parse error or absent
// metadata, implementations degrade to an empty Metadata rather than
// signaling an error.
type MetadataExtractor interface {
	Extract(buf *Buffer) Metadata
}

// noMetadata is the default extractor. The compositor's damage and cursor
// side channels need raw SPA metadata access that the GStreamer transport
// does not expose, so every frame is treated as a full-frame update with the
// cursor embedded in the pixels. An extractor that walks SPA_META_VideoDamage
// and SPA_META_Cursor can be plugged in without touching the buffer
// processing contract.
type noMetadata struct{}

func (noMetadata) Extract(*Buffer) Metadata {
	return Metadata{}
}
