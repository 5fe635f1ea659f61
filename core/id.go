package core

import "github.com/google/uuid"

// NewID returns a random UUID string used for sessions, runs and invocations.
func NewID() string { return uuid.NewString() }

// IsValidID reports whether s parses as a UUID.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
