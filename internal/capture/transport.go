package capture

import (
	"errors"
	"time"
)

// Named startup errors, one per transport initialization step.
var (
	ErrEventLoopInit    = errors.New("capture: failed to create event loop")
	ErrContextInit      = errors.New("capture: failed to create connection context")
	ErrConnectFd        = errors.New("capture: failed to bind transport descriptor")
	ErrStreamCreate     = errors.New("capture: failed to create video stream")
	ErrListenerRegister = errors.New("capture: failed to register stream listener")
	ErrStreamConnect    = errors.New("capture: failed to connect stream to node")
)

// Buffer is one dequeued video buffer together with its chunk metadata.
// Stride, Offset and Size come from the transport's chunk header and must be
// validated before touching Data.
type Buffer struct {
	Data   []byte
	Stride uint32
	Offset int
	Size   int
}

// Transport is the native video-buffer delivery subsystem, abstracted so the
// capture loop can be driven by a fake in tests.
//
// Open performs the full initialization sequence and maps each failing step
// to one of the named startup errors. Dequeue blocks for at most the given
// timeout and returns false when no buffer is available, which is not an
// error. Close releases all native resources; the Buffer returned by Dequeue
// is only valid until the next Dequeue call, so consumers must copy out.
type Transport interface {
	Open() error
	Dequeue(timeout time.Duration) (*Buffer, bool)
	Close()
}
