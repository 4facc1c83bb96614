package portal

import "errors"

// Each negotiation step maps to its own sentinel so callers can tell apart
// retryable failures (e.g. user cancelled) from terminal ones (no sources).
var (
	// ErrProxyCreate indicates the session bus or portal proxy could not
	// be reached.
	ErrProxyCreate = errors.New("portal: failed to create ScreenCast proxy")
	// ErrSessionCreate indicates CreateSession failed.
	ErrSessionCreate = errors.New("portal: failed to create session")
	// ErrSourceSelection indicates SelectSources failed.
	ErrSourceSelection = errors.New("portal: failed to select sources")
	// ErrStartFailed indicates Start failed for a reason other than the
	// user dismissing the consent dialog.
	ErrStartFailed = errors.New("portal: failed to start session")
	// ErrUserCancelled indicates the user dismissed the consent dialog.
	ErrUserCancelled = errors.New("portal: user cancelled screen capture request")
	// ErrNoSources indicates the portal returned an empty stream list.
	// Terminal: retrying without re-selecting sources cannot succeed.
	ErrNoSources = errors.New("portal: no monitor sources available")
	// ErrTransportOpen indicates OpenPipeWireRemote failed.
	ErrTransportOpen = errors.New("portal: failed to open PipeWire remote")
)

// Portal response codes carried in Request.Response signals.
const (
	responseSuccess   = 0
	responseCancelled = 1
)

// responseError maps a non-zero portal response code to a sentinel,
// distinguishing user cancellation from other failures.
func responseError(code uint32) error {
	if code == responseCancelled {
		return ErrUserCancelled
	}
	return ErrStartFailed
}
