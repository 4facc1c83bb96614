package preview

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/encode"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/ipc"
)

func newTestServer() *Server {
	status := ipc.NewStatusService(ipc.SessionInfo{Username: "alice", Port: 3389, PID: 42})
	status.SetStatus(ipc.StatusRunning)
	status.SetState(ipc.SessionActive)
	return NewServer(status)
}

func TestHealth(t *testing.T) {
	srv := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStatusReportsPipelineState(t *testing.T) {
	srv := newTestServer()
	srv.Publish(&encode.Output{
		Data: make([]byte, 4), Codec: encode.CodecRaw, Width: 1, Height: 1,
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid status JSON: %v", err)
	}
	if resp["status"] != "Running" || resp["state"] != "Active" {
		t.Fatalf("unexpected status payload: %v", resp)
	}
	if resp["frames"].(float64) != 1 {
		t.Fatalf("expected 1 frame, got %v", resp["frames"])
	}
}

func TestFrameSnapshotBeforeFirstFrame(t *testing.T) {
	srv := newTestServer()

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/frame", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 before first frame, got %d", rec.Code)
	}
}

func TestFrameSnapshotBMP(t *testing.T) {
	srv := newTestServer()
	srv.Publish(&encode.Output{
		// 2x1 BGRA: blue pixel, red pixel.
		Data:   []byte{0xFF, 0, 0, 0xFF, 0, 0, 0xFF, 0xFF},
		Codec:  encode.CodecRaw,
		Width:  2,
		Height: 1,
	})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/frame", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/bmp" {
		t.Fatalf("expected image/bmp, got %q", ct)
	}
	if body := rec.Body.Bytes(); len(body) < 2 || body[0] != 'B' || body[1] != 'M' {
		t.Fatal("response is not a BMP file")
	}
}

func TestFrameSnapshotRejectsEncodedOutput(t *testing.T) {
	srv := newTestServer()
	srv.Publish(&encode.Output{Data: []byte{0}, Codec: encode.CodecH264, Width: 1, Height: 1})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/api/frame", nil))

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 for encoded output, got %d", rec.Code)
	}
}
