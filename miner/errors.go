package miner

import (
	"context"
	"errors"

	"github.com/dropstream/drops-miner/auth"
	"github.com/dropstream/drops-miner/client"
)

// Terminal conditions - require operator attention, never retried.
var (
	// ErrNoChannelsAvailable indicates no live channel was found
	// anywhere, even after a catalog refresh. Fatal to the session.
	ErrNoChannelsAvailable = errors.New("no live channels available for any campaign")

	// ErrSessionSuperseded indicates a loop detected a newer session
	// and must exit without touching shared state.
	ErrSessionSuperseded = errors.New("mining session superseded")
)

// IsRetryableError returns true if the error is transient and the
// operation should simply be re-attempted on the next scheduled tick.
// Auth errors are never retryable here (re-authentication is the
// caller's concern); terminal conditions are never retryable.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, auth.ErrUnauthenticated) {
		return false
	}
	if errors.Is(err, ErrNoChannelsAvailable) || errors.Is(err, ErrSessionSuperseded) {
		return false
	}

	// Transport failures clear on their own; parse failures are soft
	// (the next response may be well-formed again).
	if client.IsTransport(err) || client.IsParse(err) {
		return true
	}

	// Context timeouts on a single call are transient; cancellation of
	// the session context is not, but the run-flag check catches that
	// before the next attempt.
	return errors.Is(err, context.DeadlineExceeded)
}
