package session

import "errors"

// Session error taxonomy. Every failure is scoped to one session attempt;
// none is fatal to the process.
var (
	// ErrSessionInFlight is returned when activation is requested while a
	// session is already running. The running session is untouched.
	ErrSessionInFlight = errors.New("session: already in flight")

	// ErrNoActiveSession is returned when deactivation is requested with
	// nothing to stop.
	ErrNoActiveSession = errors.New("session: no active session")

	// ErrPermissionDenied covers denied location or capture permissions.
	ErrPermissionDenied = errors.New("session: permission denied")

	// ErrLocationUnavailable covers location provider failures.
	ErrLocationUnavailable = errors.New("session: location unavailable")

	// ErrPersistenceFailure covers rejected alert inserts or updates.
	ErrPersistenceFailure = errors.New("session: persistence failure")

	// ErrUploadFailure covers evidence upload failures. The alert survives.
	ErrUploadFailure = errors.New("session: evidence upload failure")

	// ErrCaptureUnavailable is reported when recording cannot start.
	// Activation proceeds without evidence.
	ErrCaptureUnavailable = errors.New("session: capture unavailable")
)
