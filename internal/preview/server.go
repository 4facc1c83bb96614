// Package preview serves a debug HTTP surface over the pipeline: health and
// status endpoints, a snapshot of the latest frame and a websocket frame
// feed. It holds only the most recent encoder output and never applies
// backpressure to the capture pipeline.
package preview

import (
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"golang.org/x/image/bmp"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/encode"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/ipc"
	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

// Server is the diagnostic preview server.
type Server struct {
	router   *mux.Router
	upgrader websocket.Upgrader
	status   *ipc.StatusService

	mu     sync.RWMutex
	latest *encode.Output
	frames uint64
}

// NewServer creates a preview server reading status from the given service.
func NewServer(status *ipc.StatusService) *Server {
	s := &Server{
		router: mux.NewRouter(),
		status: status,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/frame", s.handleFrame).Methods("GET")
	api.HandleFunc("/stream", s.handleStream)
}

// Handler returns the HTTP handler, used directly in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until the listener fails.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	logger.WithComponent("preview").Info().Str("addr", addr).Msg("preview server listening")
	return http.ListenAndServe(addr, s.router)
}

// Publish stores the most recent encoder output. Older unobserved frames are
// discarded; the preview always shows the freshest state.
func (s *Server) Publish(out *encode.Output) {
	s.mu.Lock()
	s.latest = out
	s.frames++
	s.mu.Unlock()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	frames := s.frames
	var width, height uint32
	if s.latest != nil {
		width, height = s.latest.Width, s.latest.Height
	}
	s.mu.RUnlock()

	session := s.status.Session()
	resp := map[string]interface{}{
		"status":       s.status.Status().String(),
		"state":        session.State.String(),
		"username":     session.Username,
		"port":         session.Port,
		"pid":          session.PID,
		"client_addr":  session.ClientAddr,
		"frames":       frames,
		"frame_width":  width,
		"frame_height": height,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// handleFrame writes the latest raw frame as a BMP snapshot.
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()

	if latest == nil {
		http.Error(w, "no frame captured yet", http.StatusNotFound)
		return
	}
	if latest.Codec != encode.CodecRaw {
		http.Error(w, "snapshot requires the raw encoder", http.StatusConflict)
		return
	}

	img := bgraToImage(latest)
	w.Header().Set("Content-Type", "image/bmp")
	if err := bmp.Encode(w, img); err != nil {
		logger.WithComponent("preview").Warn().Err(err).Msg("snapshot encode failed")
	}
}

// handleStream pushes encoded frames over a websocket as binary messages.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	log := logger.WithComponent("preview")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(33 * time.Millisecond)
	defer ticker.Stop()

	var lastSeq uint64
	sent := false
	for range ticker.C {
		s.mu.RLock()
		latest := s.latest
		s.mu.RUnlock()

		if latest == nil || (sent && latest.Sequence == lastSeq) {
			continue
		}
		if err := conn.WriteMessage(websocket.BinaryMessage, latest.Data); err != nil {
			log.Debug().Err(err).Msg("websocket client gone")
			return
		}
		lastSeq = latest.Sequence
		sent = true
	}
}

// bgraToImage converts raw BGRA output into an RGBA image for snapshot
// encoding.
func bgraToImage(out *encode.Output) *image.RGBA {
	w, h := int(out.Width), int(out.Height)
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i+3 < len(out.Data) && i+3 < len(img.Pix); i += 4 {
		img.Pix[i] = out.Data[i+2]   // R
		img.Pix[i+1] = out.Data[i+1] // G
		img.Pix[i+2] = out.Data[i]   // B
		img.Pix[i+3] = 0xFF
	}
	return img
}
