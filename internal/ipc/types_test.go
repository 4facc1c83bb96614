package ipc

import "testing"

func TestServerStatusString(t *testing.T) {
	cases := map[ServerStatus]string{
		StatusStopped:    "Stopped",
		StatusStarting:   "Starting",
		StatusRunning:    "Running",
		StatusError:      "Error",
		ServerStatus(42): "Unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestSessionStateString(t *testing.T) {
	cases := map[SessionState]string{
		SessionStarting:  "Starting",
		SessionActive:    "Active",
		SessionIdle:      "Idle",
		SessionStopping:  "Stopping",
		SessionState(42): "Unknown",
	}
	for state, want := range cases {
		if got := state.String(); got != want {
			t.Fatalf("expected %q, got %q", want, got)
		}
	}
}

func TestStatusServiceStateTransitions(t *testing.T) {
	svc := NewStatusService(SessionInfo{Username: "alice", Port: 3389, PID: 1234})

	if svc.Status() != StatusStopped {
		t.Fatalf("expected initial Stopped, got %s", svc.Status())
	}

	svc.SetStatus(StatusStarting)
	svc.SetState(SessionStarting)
	svc.SetStatus(StatusRunning)
	svc.SetState(SessionActive)
	svc.SetClientAddr("198.51.100.7:54321")

	if svc.Status() != StatusRunning {
		t.Fatalf("expected Running, got %s", svc.Status())
	}
	session := svc.Session()
	if session.State != SessionActive {
		t.Fatalf("expected Active, got %s", session.State)
	}
	if session.ClientAddr != "198.51.100.7:54321" {
		t.Fatalf("client addr not recorded: %q", session.ClientAddr)
	}
	if session.Username != "alice" || session.Port != 3389 {
		t.Fatalf("identity fields lost: %+v", session)
	}
}
