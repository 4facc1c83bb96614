// Package capture runs the PipeWire capture loop on a dedicated OS thread
// and converts transport buffers into captured frames delivered over a
// bounded channel.
package capture

import (
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

// iterateTimeout bounds one event-loop iteration. Stop latency is roughly
// one iteration interval after the stop flag flips.
const iterateTimeout = 50 * time.Millisecond

// ErrBadCapacity rejects a non-positive channel capacity.
var ErrBadCapacity = errors.New("capture: channel capacity must be positive")

// Stream is a handle to a running capture loop.
//
// The loop owns a dedicated OS-locked thread: the native event loop is
// blocking and callback-driven, which is incompatible with cooperative
// scheduling. The only state shared across the thread boundary is the stop
// flag, the sequence counter and the bounded event channel.
type Stream struct {
	transport Transport
	stopped   atomic.Bool
	done      chan struct{}
	stopOnce  sync.Once
}

// Start opens the PipeWire transport bound to the portal descriptor, connects
// it to the given source node and starts the capture loop. The returned
// channel carries at most capacity undelivered events; when it is full the
// producer drops frames rather than block.
//
// The channel is closed when the loop exits, whether through Stop or a
// transport failure.
func Start(fd int, nodeID uint32, capacity int) (*Stream, <-chan frame.CaptureEvent, error) {
	return startWith(newGstTransport(fd, nodeID), noMetadata{}, capacity)
}

func startWith(t Transport, extract MetadataExtractor, capacity int) (*Stream, <-chan frame.CaptureEvent, error) {
	if capacity <= 0 {
		return nil, nil, ErrBadCapacity
	}
	if err := t.Open(); err != nil {
		t.Close()
		return nil, nil, err
	}

	events := make(chan frame.CaptureEvent, capacity)
	s := &Stream{
		transport: t,
		done:      make(chan struct{}),
	}
	go s.run(extract, events)
	return s, events, nil
}

// Stop flips the stop flag and joins the capture thread, then releases the
// transport. Idempotent: further calls return immediately once the first one
// has completed.
func (s *Stream) Stop() {
	s.stopOnce.Do(func() {
		s.stopped.Store(true)
		<-s.done
		s.transport.Close()
	})
}

// Alive reports whether the capture thread is still running. A stream whose
// thread has exited delivers no more frames and must be restarted.
func (s *Stream) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *Stream) run(extract MetadataExtractor, events chan frame.CaptureEvent) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(s.done)
	defer close(events)

	log := logger.WithComponent("capture")
	log.Info().Msg("capture loop running")

	var seq atomic.Uint64
	for !s.stopped.Load() {
		buf, ok := s.transport.Dequeue(iterateTimeout)
		if !ok {
			continue
		}
		processBuffer(buf, &seq, extract, events, log)
	}

	log.Info().Uint64("frames", seq.Load()).Msg("capture loop exiting")
}

// processBuffer converts one transport buffer into a capture event and
// performs a non-blocking send. Invoked synchronously from the event-loop
// iteration, so it must stay fast and must never block.
//
// Malformed buffers are dropped without advancing the sequence counter; a
// full channel drops the frame, favoring freshness over completeness.
func processBuffer(buf *Buffer, seq *atomic.Uint64, extract MetadataExtractor, events chan<- frame.CaptureEvent, log *zerolog.Logger) {
	if buf.Size == 0 || buf.Stride == 0 {
		return
	}

	// BGRx/BGRA is 4 bytes per pixel; dimensions derive from the chunk
	// metadata, not from buffer content.
	const bpp = 4
	width := buf.Stride / bpp
	height := uint32(buf.Size) / buf.Stride
	if width == 0 || height == 0 {
		return
	}

	end := buf.Offset + buf.Size
	if end > len(buf.Data) {
		log.Warn().
			Int("offset", buf.Offset).
			Int("size", buf.Size).
			Int("len", len(buf.Data)).
			Msg("buffer slice out of bounds, dropping")
		return
	}

	// The transport reclaims the buffer after this call returns, so the
	// pixel data is copied into a frame-owned allocation.
	data := make([]byte, buf.Size)
	copy(data, buf.Data[buf.Offset:end])

	sequence := seq.Add(1) - 1
	meta := extract.Extract(buf)

	event := frame.CaptureEvent{
		Frame: frame.CapturedFrame{
			Data:     data,
			Width:    width,
			Height:   height,
			Format:   frame.FormatBGRA,
			Stride:   buf.Stride,
			Sequence: sequence,
			Damage:   meta.Damage,
		},
		Cursor: meta.Cursor,
	}

	select {
	case events <- event:
	default:
		log.Trace().Uint64("sequence", sequence).Msg("frame channel full, dropping frame")
	}
}
