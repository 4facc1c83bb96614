package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

// gstInitOnce guards process-wide GStreamer initialization. Initialization is
// lazy: it happens on the first transport Open, not at package load.
var gstInitOnce sync.Once

// gstTransport delivers PipeWire buffers through a
// pipewiresrc → videoconvert → appsink pipeline. pipewiresrc connects over
// the portal-supplied descriptor and tags the stream as a video capture
// client so the compositor routes the screen content to it.
type gstTransport struct {
	fd     int
	nodeID uint32

	pipeline *gst.Pipeline
	appsink  *app.Sink

	// scratch holds the most recently dequeued buffer; reused across
	// Dequeue calls to avoid a per-frame allocation in the transport.
	scratch Buffer
}

func newGstTransport(fd int, nodeID uint32) *gstTransport {
	return &gstTransport{fd: fd, nodeID: nodeID}
}

func (t *gstTransport) Open() error {
	log := logger.WithComponent("pipewire")

	gstInitOnce.Do(func() {
		gst.Init(nil)
	})

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrEventLoopInit, err)
	}

	src, err := gst.NewElement("pipewiresrc")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrContextInit, err)
	}
	if t.fd < 0 {
		return fmt.Errorf("%w: invalid descriptor %d", ErrConnectFd, t.fd)
	}
	src.SetProperty("fd", t.fd)
	src.SetProperty("path", fmt.Sprintf("%d", t.nodeID))
	src.SetProperty("do-timestamp", true)
	src.SetProperty("client-name", "cosmic-rdp-capture")

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamCreate, err)
	}

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamCreate, err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=BGRx"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStreamCreate, err)
	}
	// Real-time delivery: never sync to the clock, keep only the freshest
	// buffers and let the sink drop the rest.
	appsink.SetProperty("sync", false)
	appsink.SetProperty("max-buffers", 2)
	appsink.SetProperty("drop", true)

	bus := pipeline.GetPipelineBus()
	if bus == nil {
		return fmt.Errorf("%w: pipeline has no bus", ErrListenerRegister)
	}
	bus.AddWatch(func(msg *gst.Message) bool {
		switch msg.Type() {
		case gst.MessageStateChanged:
			if msg.Source() == pipeline.GetName() {
				old, next := msg.ParseStateChanged()
				log.Debug().
					Interface("from", old).
					Interface("to", next).
					Msg("pipeline state changed")
			}
		case gst.MessageError:
			// Logged for diagnostics, not auto-recovered. A dead
			// stream is detected by the handle's health check.
			gerr := msg.ParseError()
			log.Error().
				Str("error", gerr.Error()).
				Str("debug", gerr.DebugString()).
				Msg("pipeline error")
		case gst.MessageEOS:
			log.Warn().Msg("pipeline reached end of stream")
		}
		return true
	})

	if err := pipeline.AddMany(src, convert, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamConnect, err)
	}
	if err := gst.ElementLinkMany(src, convert, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamConnect, err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("%w: %v", ErrStreamConnect, err)
	}

	t.pipeline = pipeline
	t.appsink = appsink
	log.Info().Uint32("node_id", t.nodeID).Int("fd", t.fd).Msg("pipewire pipeline playing")
	return nil
}

func (t *gstTransport) Dequeue(timeout time.Duration) (*Buffer, bool) {
	sample := t.appsink.TryPullSample(timeout)
	if sample == nil {
		return nil, false
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, false
	}

	width := 0
	if caps := sample.GetCaps(); caps != nil {
		if structure := caps.GetStructureAt(0); structure != nil {
			if v, err := structure.GetValue("width"); err == nil {
				if w, ok := v.(int); ok {
					width = w
				}
			}
		}
	}

	mapInfo := buffer.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, false
	}
	defer buffer.Unmap()

	data := mapInfo.Bytes()
	// GStreamer reclaims the mapped region after Unmap, so the bytes are
	// copied into the transport-owned scratch buffer.
	if cap(t.scratch.Data) < len(data) {
		t.scratch.Data = make([]byte, len(data))
	}
	t.scratch.Data = t.scratch.Data[:len(data)]
	copy(t.scratch.Data, data)

	t.scratch.Stride = uint32(width * 4)
	t.scratch.Offset = 0
	t.scratch.Size = len(data)
	return &t.scratch, true
}

func (t *gstTransport) Close() {
	if t.pipeline != nil {
		t.pipeline.SetState(gst.StateNull)
		t.pipeline = nil
	}
	t.appsink = nil
}
