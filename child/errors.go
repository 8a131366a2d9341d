package child

import "errors"

// Sentinel errors for process supervision. Wrapped errors carry these
// markers so callers can branch with errors.Is.
var (
	// ErrSpawn indicates the child process could not be started.
	ErrSpawn = errors.New("spawn failed")
	// ErrAlreadyStreaming indicates the handle's pipes were already claimed,
	// either by Stream or by one of the Take accessors.
	ErrAlreadyStreaming = errors.New("process output already claimed")
	// ErrStdinUnavailable indicates the child's stdin pipe was taken or closed.
	ErrStdinUnavailable = errors.New("stdin unavailable")
	// ErrNotStarted indicates an operation that requires a live process was
	// invoked before the child was running.
	ErrNotStarted = errors.New("process not started")
)
