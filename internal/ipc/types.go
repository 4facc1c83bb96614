// Package ipc holds the data contracts shared with the session broker and
// the command-line front end, plus the session-bus status export the daemon
// populates.
package ipc

// ServerStatus is the status of one per-user server instance.
type ServerStatus uint8

const (
	// StatusStopped means the server is not running.
	StatusStopped ServerStatus = iota
	// StatusStarting means the server is starting up.
	StatusStarting
	// StatusRunning means the server is accepting connections.
	StatusRunning
	// StatusError means the server hit an unrecoverable error.
	StatusError
)

func (s ServerStatus) String() string {
	switch s {
	case StatusStopped:
		return "Stopped"
	case StatusStarting:
		return "Starting"
	case StatusRunning:
		return "Running"
	case StatusError:
		return "Error"
	default:
		return "Unknown"
	}
}

// SessionState is the broker's view of a managed user session.
type SessionState uint8

const (
	// SessionStarting means the session is being spawned.
	SessionStarting SessionState = iota
	// SessionActive means the server is running, with or without a client.
	SessionActive
	// SessionIdle means the client disconnected and the session awaits a
	// timeout or reconnect.
	SessionIdle
	// SessionStopping means the session is being terminated.
	SessionStopping
)

func (s SessionState) String() string {
	switch s {
	case SessionStarting:
		return "Starting"
	case SessionActive:
		return "Active"
	case SessionIdle:
		return "Idle"
	case SessionStopping:
		return "Stopping"
	default:
		return "Unknown"
	}
}

// SessionInfo identifies one broker-managed per-user server.
type SessionInfo struct {
	// Username is the unix user the server runs as.
	Username string
	// Port the server listens on.
	Port uint16
	// PID of the server process.
	PID uint32
	// State of the session.
	State SessionState
	// CreatedAt is the unix timestamp (seconds) of session creation.
	CreatedAt int64
	// ClientAddr is the remote address of the most recent client, empty
	// if none has connected.
	ClientAddr string
}

// ClientInfo describes a connected remote client.
type ClientInfo struct {
	// Address is the client's remote address.
	Address string
	// ConnectedAt is the unix timestamp (seconds) of the connection.
	ConnectedAt int64
}
