package encode

import (
	"fmt"
	"sync"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/frame"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

var gstInitOnce sync.Once

// pullTimeout bounds the wait for one encoded sample. x264 in zero-latency
// mode emits output per input frame, so a long wait means the pipeline died.
const pullTimeout = 500 * time.Millisecond

// H264Encoder compresses frames through a GStreamer
// appsrc → videoconvert → x264enc → appsink pipeline. The compression
// bitstream lives entirely inside x264enc.
type H264Encoder struct {
	width  uint32
	height uint32

	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink

	// rebuild is set by Resize; the pipeline is recreated with the new
	// caps on the next Encode rather than inside Resize itself.
	rebuild bool
}

// NewH264 creates an H.264 encoder for the given stream geometry. When the
// geometry is still unknown (the portal did not report a size) the pipeline
// build is deferred until the first Encode, which sees the real frame size.
func NewH264(width, height uint32) (*H264Encoder, error) {
	e := &H264Encoder{width: width, height: height}
	if width == 0 || height == 0 {
		e.rebuild = true
		return e, nil
	}
	if err := e.buildPipeline(); err != nil {
		return nil, err
	}
	return e, nil
}

func (e *H264Encoder) buildPipeline() error {
	gstInitOnce.Do(func() {
		gst.Init(nil)
	})

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("h264: failed to create pipeline: %w", err)
	}

	src, err := app.NewAppSrc()
	if err != nil {
		return fmt.Errorf("h264: failed to create appsrc: %w", err)
	}
	src.SetProperty("is-live", true)
	src.SetProperty("do-timestamp", true)
	src.SetProperty("caps", gst.NewCapsFromString(fmt.Sprintf(
		"video/x-raw,format=BGRx,width=%d,height=%d,framerate=0/1",
		e.width, e.height,
	)))

	convert, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("h264: failed to create videoconvert: %w", err)
	}

	enc, err := gst.NewElement("x264enc")
	if err != nil {
		return fmt.Errorf("h264: failed to create x264enc: %w", err)
	}
	// tune=zerolatency (0x4), speed-preset=ultrafast (1).
	enc.SetProperty("tune", 0x4)
	enc.SetProperty("speed-preset", 1)
	enc.SetProperty("key-int-max", 60)

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("h264: failed to create appsink: %w", err)
	}
	sink.SetProperty("sync", false)
	sink.SetProperty("max-buffers", 2)
	sink.SetProperty("drop", false)

	if err := pipeline.AddMany(src.Element, convert, enc, sink.Element); err != nil {
		return fmt.Errorf("h264: failed to assemble pipeline: %w", err)
	}
	if err := gst.ElementLinkMany(src.Element, convert, enc, sink.Element); err != nil {
		return fmt.Errorf("h264: failed to link pipeline: %w", err)
	}
	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("h264: failed to start pipeline: %w", err)
	}

	e.pipeline = pipeline
	e.src = src
	e.sink = sink
	logger.WithComponent("h264").Info().
		Uint32("width", e.width).
		Uint32("height", e.height).
		Msg("encoder pipeline playing")
	return nil
}

func (e *H264Encoder) teardown() {
	if e.pipeline != nil {
		e.pipeline.SetState(gst.StateNull)
		e.pipeline = nil
		e.src = nil
		e.sink = nil
	}
}

// Encode pushes one frame through the encoder and returns the resulting
// H.264 access unit.
func (e *H264Encoder) Encode(f *frame.CapturedFrame) (*Output, error) {
	if e.rebuild {
		e.teardown()
		if err := e.buildPipeline(); err != nil {
			return nil, err
		}
		e.rebuild = false
	}

	buffer := gst.NewBufferFromBytes(f.Data)
	if buffer == nil {
		return nil, fmt.Errorf("h264: failed to wrap frame %d", f.Sequence)
	}
	if ret := e.src.PushBuffer(buffer); ret != gst.FlowOK {
		return nil, fmt.Errorf("h264: push failed for frame %d: %v", f.Sequence, ret)
	}

	sample := e.sink.TryPullSample(pullTimeout)
	if sample == nil {
		return nil, fmt.Errorf("h264: no encoded output for frame %d", f.Sequence)
	}
	out := sample.GetBuffer()
	if out == nil {
		return nil, fmt.Errorf("h264: empty encoded sample for frame %d", f.Sequence)
	}
	mapInfo := out.Map(gst.MapRead)
	if mapInfo == nil {
		return nil, fmt.Errorf("h264: failed to map encoded buffer for frame %d", f.Sequence)
	}
	defer out.Unmap()

	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())

	return &Output{
		Data:     data,
		Codec:    CodecH264,
		Width:    f.Width,
		Height:   f.Height,
		Sequence: f.Sequence,
	}, nil
}

// Resize updates the tracked geometry. The pipeline is rebuilt with the new
// caps on the next Encode; already-encoded frames are untouched.
func (e *H264Encoder) Resize(width, height uint32) {
	if width == e.width && height == e.height {
		return
	}
	e.width = width
	e.height = height
	e.rebuild = true
}

// Width returns the tracked frame width.
func (e *H264Encoder) Width() uint32 { return e.width }

// Height returns the tracked frame height.
func (e *H264Encoder) Height() uint32 { return e.height }

// Close releases the encoder pipeline.
func (e *H264Encoder) Close() {
	e.teardown()
}
