package core

import (
	"errors"
	"fmt"
)

var (
	// ErrSessionNotFound is returned for a non-empty session id the store does not know.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionBusy is returned when a run is already active on the session.
	ErrSessionBusy = errors.New("session has an active run")

	// ErrToolNotFound is returned when a requested tool name is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrMaxStepsExceeded is returned when a run exceeds its reasoning step budget.
	ErrMaxStepsExceeded = errors.New("exceeded max reasoning steps")

	// ErrIncompleteResponse is returned when a model stream ends without a final value.
	ErrIncompleteResponse = errors.New("model stream ended without final response")
)

// CapabilityError reports an outright failure of the reasoning capability
// (network, auth, quota). It is fatal for the run.
type CapabilityError struct {
	Provider string
	Err      error
}

func (e *CapabilityError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("reasoning capability failed: %v", e.Err)
	}
	return fmt.Sprintf("reasoning capability %s failed: %v", e.Provider, e.Err)
}

// Unwrap returns the underlying error.
func (e *CapabilityError) Unwrap() error { return e.Err }
