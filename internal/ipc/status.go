package ipc

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/olafkfreund/cosmic-ext-rdp-server/internal/logger"
)

// StatusService publishes the daemon's status and session identity on the
// session bus so the broker and the CLI front end can observe it. Only reads
// are exposed over the bus; state changes come from the host process.
type StatusService struct {
	mu      sync.RWMutex
	status  ServerStatus
	session SessionInfo

	conn *dbus.Conn
}

// NewStatusService creates a status service starting in the Stopped state.
func NewStatusService(session SessionInfo) *StatusService {
	return &StatusService{
		status:  StatusStopped,
		session: session,
	}
}

// Publish claims the daemon's bus name and exports the status object.
func (s *StatusService) Publish() error {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return fmt.Errorf("ipc: failed to connect to session bus: %w", err)
	}

	reply, err := conn.RequestName(ServiceName, dbus.NameFlagDoNotQueue)
	if err != nil {
		conn.Close()
		return fmt.Errorf("ipc: failed to request bus name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		conn.Close()
		return fmt.Errorf("ipc: bus name %s already owned", ServiceName)
	}

	if err := conn.Export(&statusExport{svc: s}, ObjectPath, Interface); err != nil {
		conn.Close()
		return fmt.Errorf("ipc: failed to export status object: %w", err)
	}

	s.conn = conn
	logger.WithComponent("ipc").Info().Str("name", ServiceName).Msg("status service published")
	return nil
}

// Close releases the bus name and connection.
func (s *StatusService) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.ReleaseName(ServiceName)
	err := s.conn.Close()
	s.conn = nil
	return err
}

// SetStatus updates the published server status.
func (s *StatusService) SetStatus(status ServerStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

// SetState updates the published session state.
func (s *StatusService) SetState(state SessionState) {
	s.mu.Lock()
	s.session.State = state
	s.mu.Unlock()
}

// SetClientAddr records the most recent client address.
func (s *StatusService) SetClientAddr(addr string) {
	s.mu.Lock()
	s.session.ClientAddr = addr
	s.mu.Unlock()
}

// Status returns the current server status.
func (s *StatusService) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Session returns the current session info.
func (s *StatusService) Session() SessionInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// statusExport is the bus-facing adapter. Exporting a separate type keeps
// the service's setters off the bus.
type statusExport struct {
	svc *StatusService
}

func (e *statusExport) Status() (uint8, *dbus.Error) {
	return uint8(e.svc.Status()), nil
}

func (e *statusExport) Session() (SessionInfo, *dbus.Error) {
	return e.svc.Session(), nil
}
