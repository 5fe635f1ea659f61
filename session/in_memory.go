package session

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentstream/core"
)

// InMemoryStore is a volatile SessionStore implementation storing
// sessions in a process local map. It is safe for concurrent access and best
// suited for tests or single-process servers. Sessions are never evicted.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
	newID    func() string
}

// NewInMemoryStore constructs an empty in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{sessions: make(map[string]*core.Session), newID: core.NewID}
}

// GetOrCreate resolves sessionID. An empty id mints a new session.
func (s *InMemoryStore) GetOrCreate(sessionID string) (string, bool, error) {
	if sessionID != "" {
		s.mu.RLock()
		_, ok := s.sessions[sessionID]
		s.mu.RUnlock()
		if !ok {
			return "", false, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
		}
		return sessionID, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.newID()
	for _, exists := s.sessions[id]; exists; _, exists = s.sessions[id] {
		id = s.newID()
	}
	s.sessions[id] = core.NewSession(id)
	return id, true, nil
}

// Append adds a message to an existing session.
func (s *InMemoryStore) Append(sessionID string, msg core.Message) error {
	sess, err := s.get(sessionID)
	if err != nil {
		return err
	}
	sess.Append(msg)
	return nil
}

// History returns a snapshot of the session log.
func (s *InMemoryStore) History(sessionID string) ([]core.Message, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Messages(), nil
}

// Get returns a clone of the stored session.
func (s *InMemoryStore) Get(sessionID string) (*core.Session, error) {
	sess, err := s.get(sessionID)
	if err != nil {
		return nil, err
	}
	return sess.Clone(), nil
}

// Delete removes a session. Unknown ids are ignored.
func (s *InMemoryStore) Delete(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}

// Len returns the number of sessions.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *InMemoryStore) get(sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}
	return sess, nil
}
