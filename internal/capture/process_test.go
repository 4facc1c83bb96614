package capture

import (
	"sync/atomic"
	"testing"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

func processOne(t *testing.T, buf *Buffer, seq *atomic.Uint64, events chan frame.CaptureEvent) {
	t.Helper()
	processBuffer(buf, seq, noMetadata{}, events, logger.WithComponent("test"))
}

func TestProcessBufferRejectsDegenerate(t *testing.T) {
	events := make(chan frame.CaptureEvent, 4)
	var seq atomic.Uint64

	cases := map[string]*Buffer{
		"zero stride": {Data: make([]byte, 64), Stride: 0, Size: 64},
		"zero size":   {Data: make([]byte, 64), Stride: 16, Size: 0},
		"zero height": {Data: make([]byte, 8), Stride: 16, Size: 8},
	}
	for name, buf := range cases {
		processOne(t, buf, &seq, events)
		if len(events) != 0 {
			t.Fatalf("%s: expected no frame", name)
		}
		if seq.Load() != 0 {
			t.Fatalf("%s: sequence counter advanced to %d", name, seq.Load())
		}
	}
}

func TestProcessBufferOutOfBounds(t *testing.T) {
	events := make(chan frame.CaptureEvent, 4)
	var seq atomic.Uint64

	// offset + size exceeds the slice: must drop, not read out of bounds.
	buf := &Buffer{Data: make([]byte, 64), Stride: 16, Offset: 32, Size: 64}
	processOne(t, buf, &seq, events)

	if len(events) != 0 {
		t.Fatal("expected no frame for out-of-bounds buffer")
	}
	if seq.Load() != 0 {
		t.Fatalf("sequence counter advanced to %d", seq.Load())
	}
}

func TestProcessBufferHonorsOffset(t *testing.T) {
	events := make(chan frame.CaptureEvent, 1)
	var seq atomic.Uint64

	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	// One 4x1 row starting at byte 16.
	buf := &Buffer{Data: data, Stride: 16, Offset: 16, Size: 16}
	processOne(t, buf, &seq, events)

	ev := <-events
	if ev.Frame.Width != 4 || ev.Frame.Height != 1 {
		t.Fatalf("expected 4x1, got %dx%d", ev.Frame.Width, ev.Frame.Height)
	}
	if ev.Frame.Data[0] != 16 || len(ev.Frame.Data) != 16 {
		t.Fatalf("frame data not copied from offset: %v", ev.Frame.Data)
	}

	// The frame owns its bytes: mutating the transport buffer afterwards
	// must not show through.
	data[16] = 0xEE
	if ev.Frame.Data[0] != 16 {
		t.Fatal("frame data aliases the transport buffer")
	}
}

func TestProcessBufferDropsWhenChannelFull(t *testing.T) {
	events := make(chan frame.CaptureEvent, 1)
	var seq atomic.Uint64

	processOne(t, fullHDBuffer(), &seq, events)
	processOne(t, fullHDBuffer(), &seq, events) // channel full: dropped, no block

	if len(events) != 1 {
		t.Fatalf("expected exactly 1 queued frame, got %d", len(events))
	}
	ev := <-events
	if ev.Frame.Sequence != 0 {
		t.Fatalf("expected first frame sequence 0, got %d", ev.Frame.Sequence)
	}
	// The dropped frame still consumed a sequence number, so the gap is
	// visible to consumers.
	if seq.Load() != 2 {
		t.Fatalf("expected sequence counter 2, got %d", seq.Load())
	}
}
