package core

import (
	"sync"
	"time"
)

// Session is an append-only conversation log identified by an opaque token.
// It is safe for concurrent access; appends are serialized per session.
//
// Contract:
//   - Append never removes or rewrites entries
//   - Messages returns a defensive copy so replays are stable
//   - Clone performs a copy of the message slice for safe divergence
type Session struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
	messages []Message
	mu       sync.RWMutex
}

// NewSession creates an empty session with the given ID.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, Created: now, Updated: now, messages: []Message{}}
}

// Append adds a message to the end of the log and bumps Updated.
func (s *Session) Append(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
	s.Updated = time.Now()
}

// Messages returns a copy of the ordered message log.
func (s *Session) Messages() []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Len returns the number of stored messages.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

// Clone returns a copy of the session safe for independent mutation.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := &Session{ID: s.ID, Created: s.Created, Updated: s.Updated, messages: make([]Message, len(s.messages))}
	copy(clone.messages, s.messages)
	return clone
}

// SessionStore persists conversation logs keyed by session id.
//
// GetOrCreate mints a fresh id when sessionID is empty and reports isNew;
// a non-empty unknown id fails with ErrSessionNotFound. Append and History
// fail with ErrSessionNotFound for unknown ids.
type SessionStore interface {
	GetOrCreate(sessionID string) (id string, isNew bool, err error)
	Append(sessionID string, msg Message) error
	History(sessionID string) ([]Message, error)
}
