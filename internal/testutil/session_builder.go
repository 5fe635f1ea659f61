package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentstream/core"
)

// SessionBuilder seeds a store with a fresh session and history.
// Example:
//
//	id := NewSessionBuilder().User("hello").Seed(t, store)
type SessionBuilder struct {
	HistoryBuilder
}

// NewSessionBuilder creates a builder for a new session.
func NewSessionBuilder() *SessionBuilder { return &SessionBuilder{} }

// User appends a user turn (chainable).
func (b *SessionBuilder) User(text string) *SessionBuilder {
	b.HistoryBuilder.User(text)
	return b
}

// Messages appends prebuilt messages (chainable).
func (b *SessionBuilder) Messages(msgs ...core.Message) *SessionBuilder {
	b.messages = append(b.messages, msgs...)
	return b
}

// Seed creates the session in store, appends the history and returns the
// new session id. Failures abort the test.
func (b *SessionBuilder) Seed(t testing.TB, store core.SessionStore) string {
	t.Helper()
	id, isNew, err := store.GetOrCreate("")
	require.NoError(t, err)
	require.True(t, isNew)
	for _, m := range b.messages {
		require.NoError(t, store.Append(id, m))
	}
	return id
}
