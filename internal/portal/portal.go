// Package portal negotiates screen capture sessions with the
// xdg-desktop-portal ScreenCast interface over D-Bus.
//
// A successful negotiation yields a CaptureSession holding the portal session
// handle, the list of capturable monitor sources and an open PipeWire file
// descriptor. The session (and the bus connection it owns) must stay alive
// for the whole capture lifetime; closing it revokes the transport.
package portal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

const (
	portalService   = "org.freedesktop.portal.Desktop"
	portalPath      = "/org/freedesktop/portal/desktop"
	screenCastIface = "org.freedesktop.portal.ScreenCast"
	requestIface    = "org.freedesktop.portal.Request"
	sessionIface    = "org.freedesktop.portal.Session"
)

// Source types for SelectSources.
const (
	SourceTypeMonitor = 1 << 0
	SourceTypeWindow  = 1 << 1
	SourceTypeVirtual = 1 << 2
)

// Cursor modes for SelectSources.
const (
	CursorModeHidden   = 1 << 0
	CursorModeEmbedded = 1 << 1
	CursorModeMetadata = 1 << 2
)

// Persist modes for SelectSources.
const (
	PersistModeNone = 0
	// PersistModeTransient persists while the application is running.
	PersistModeTransient = 1
	// PersistModeExplicitlyRevoked persists until the user revokes the
	// grant, surviving process restarts.
	PersistModeExplicitlyRevoked = 2
)

// VideoSource is one capturable stream offered by the portal.
type VideoSource struct {
	// NodeID is the PipeWire node to connect to.
	NodeID uint32
	// Width and Height are the stream size reported by the portal in
	// compositor logical units, zero when not reported.
	Width  int32
	Height int32
}

// CaptureSession is the result of a successful negotiation. The caller owns
// it and must keep it alive while capturing; Close releases the permission
// grant and the PipeWire descriptor.
type CaptureSession struct {
	conn          *dbus.Conn
	sessionHandle dbus.ObjectPath

	// Sources available for capture; never empty.
	Sources []VideoSource
	// RestoreToken enables silent re-authorization on future runs, empty
	// if the portal did not issue one.
	RestoreToken string

	pipewireFD int
}

// PipeWireFD returns the open PipeWire transport descriptor bound to this
// session.
func (s *CaptureSession) PipeWireFD() int {
	return s.pipewireFD
}

// Close releases the portal session, the PipeWire descriptor and the bus
// connection. Safe to call once the capture stream has stopped.
func (s *CaptureSession) Close() error {
	if s.sessionHandle != "" {
		s.conn.Object(portalService, s.sessionHandle).Call(sessionIface+".Close", 0)
		s.sessionHandle = ""
	}
	if s.pipewireFD >= 0 {
		syscall.Close(s.pipewireFD)
		s.pipewireFD = -1
	}
	return s.conn.Close()
}

// StartCaptureSession runs the full ScreenCast negotiation: create a session,
// select a single monitor source with the cursor embedded in the frame, start
// it (this may show the system consent dialog and block until the user
// responds), and open the PipeWire remote.
//
// restoreToken, when non-empty, asks the portal to skip the consent dialog.
// Timeout policy belongs to the caller via ctx; no step times out on its own.
func StartCaptureSession(ctx context.Context, restoreToken string) (*CaptureSession, error) {
	log := logger.WithComponent("portal")

	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProxyCreate, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(requestIface),
		dbus.WithMatchMember("Response"),
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrProxyCreate, err)
	}

	n := &negotiator{conn: conn, log: log}

	sessionHandle, err := n.createSession(ctx)
	if err != nil {
		conn.Close()
		return nil, err
	}
	log.Debug().Str("session", string(sessionHandle)).Msg("portal session created")

	if err := n.selectSources(ctx, sessionHandle, restoreToken); err != nil {
		conn.Close()
		return nil, err
	}

	sources, newToken, err := n.start(ctx, sessionHandle)
	if err != nil {
		conn.Close()
		return nil, err
	}

	fd, err := n.openPipeWireRemote(ctx, sessionHandle)
	if err != nil {
		conn.Close()
		return nil, err
	}

	log.Info().
		Uint32("node_id", sources[0].NodeID).
		Int32("width", sources[0].Width).
		Int32("height", sources[0].Height).
		Int("sources", len(sources)).
		Msg("screen capture session started")

	return &CaptureSession{
		conn:          conn,
		sessionHandle: sessionHandle,
		Sources:       sources,
		RestoreToken:  newToken,
		pipewireFD:    fd,
	}, nil
}

type negotiator struct {
	conn *dbus.Conn
	log  *zerolog.Logger
}

func (n *negotiator) createSession(ctx context.Context) (dbus.ObjectPath, error) {
	options := map[string]dbus.Variant{
		"handle_token":         dbus.MakeVariant(handleToken()),
		"session_handle_token": dbus.MakeVariant(handleToken()),
	}

	results, err := n.callAndWait(ctx, "CreateSession", options)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSessionCreate, err)
	}

	handle, ok := results["session_handle"]
	if !ok {
		return "", fmt.Errorf("%w: no session handle in response", ErrSessionCreate)
	}
	switch v := handle.Value().(type) {
	case dbus.ObjectPath:
		return v, nil
	case string:
		return dbus.ObjectPath(v), nil
	default:
		return "", fmt.Errorf("%w: unexpected session_handle type %T", ErrSessionCreate, v)
	}
}

func (n *negotiator) selectSources(ctx context.Context, session dbus.ObjectPath, restoreToken string) error {
	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(handleToken()),
		"types":        dbus.MakeVariant(uint32(SourceTypeMonitor)),
		"multiple":     dbus.MakeVariant(false),
		"cursor_mode":  dbus.MakeVariant(uint32(CursorModeEmbedded)),
		"persist_mode": dbus.MakeVariant(uint32(PersistModeExplicitlyRevoked)),
	}
	if restoreToken != "" {
		options["restore_token"] = dbus.MakeVariant(restoreToken)
	}

	if _, err := n.callAndWait(ctx, "SelectSources", session, options); err != nil {
		return fmt.Errorf("%w: %v", ErrSourceSelection, err)
	}
	return nil
}

func (n *negotiator) start(ctx context.Context, session dbus.ObjectPath) ([]VideoSource, string, error) {
	options := map[string]dbus.Variant{
		"handle_token": dbus.MakeVariant(handleToken()),
	}

	// Empty parent window: the daemon has no window to anchor the dialog to.
	results, err := n.callAndWait(ctx, "Start", session, "", options)
	if err != nil {
		if errors.Is(err, ErrUserCancelled) {
			return nil, "", err
		}
		return nil, "", fmt.Errorf("%w: %v", ErrStartFailed, err)
	}

	var sources []VideoSource
	if streams, ok := results["streams"]; ok {
		sources = parseStreams(streams.Value())
	}
	if len(sources) == 0 {
		return nil, "", ErrNoSources
	}

	var restoreToken string
	if v, ok := results["restore_token"]; ok {
		if token, ok := v.Value().(string); ok {
			restoreToken = token
		}
	}

	return sources, restoreToken, nil
}

func (n *negotiator) openPipeWireRemote(ctx context.Context, session dbus.ObjectPath) (int, error) {
	obj := n.conn.Object(portalService, portalPath)

	var fd dbus.UnixFD
	err := obj.CallWithContext(ctx, screenCastIface+".OpenPipeWireRemote", 0,
		session, map[string]dbus.Variant{}).Store(&fd)
	if err != nil {
		return -1, fmt.Errorf("%w: %v", ErrTransportOpen, err)
	}
	return int(fd), nil
}

// callAndWait invokes a ScreenCast request method and waits for the matching
// Request.Response signal. The portal responds asynchronously; the signal
// channel is registered before the call so the response cannot be missed.
func (n *negotiator) callAndWait(ctx context.Context, method string, args ...interface{}) (map[string]dbus.Variant, error) {
	signals := make(chan *dbus.Signal, 16)
	n.conn.Signal(signals)
	defer n.conn.RemoveSignal(signals)

	obj := n.conn.Object(portalService, portalPath)
	var requestPath dbus.ObjectPath
	if err := obj.CallWithContext(ctx, screenCastIface+"."+method, 0, args...).Store(&requestPath); err != nil {
		return nil, err
	}
	n.log.Debug().
		Str("method", method).
		Str("request", string(requestPath)).
		Msg("waiting for portal response")

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return nil, errors.New("signal channel closed")
			}
			if sig.Path != requestPath || sig.Name != requestIface+".Response" {
				continue
			}
			if len(sig.Body) < 2 {
				return nil, errors.New("malformed Response signal")
			}
			code, _ := sig.Body[0].(uint32)
			if code != responseSuccess {
				return nil, responseError(code)
			}
			results, _ := sig.Body[1].(map[string]dbus.Variant)
			return results, nil
		}
	}
}

// parseStreams decodes the portal's a(ua{sv}) stream list. godbus decodes
// struct arrays as [][]interface{} but some portal versions deliver
// []interface{} of nested slices, so both shapes are handled.
func parseStreams(v interface{}) []VideoSource {
	var entries [][]interface{}
	switch streams := v.(type) {
	case [][]interface{}:
		entries = streams
	case []interface{}:
		for _, e := range streams {
			if entry, ok := e.([]interface{}); ok {
				entries = append(entries, entry)
			}
		}
	default:
		return nil
	}

	var sources []VideoSource
	for _, entry := range entries {
		if len(entry) < 2 {
			continue
		}
		nodeID, ok := entry[0].(uint32)
		if !ok {
			continue
		}
		src := VideoSource{NodeID: nodeID}
		if props, ok := entry[1].(map[string]dbus.Variant); ok {
			if size, ok := props["size"]; ok {
				if dims, ok := size.Value().([]interface{}); ok && len(dims) == 2 {
					if w, ok := dims[0].(int32); ok {
						src.Width = w
					}
					if h, ok := dims[1].(int32); ok {
						src.Height = h
					}
				}
			}
		}
		sources = append(sources, src)
	}
	return sources
}

func handleToken() string {
	return "cosmicrdp" + strings.ReplaceAll(uuid.NewString(), "-", "")
}
