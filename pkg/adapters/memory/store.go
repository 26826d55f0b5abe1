// Package memory provides an in-memory SessionStore, used as the default
// local persistence strategy and in tests.
package memory

import (
	"context"
	"sync"

	"github.com/scopeflow/scopeflow/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.Session
	mu   sync.RWMutex
}

// NewStore creates a new in-memory store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.Session),
	}
}

// Put persists the session in memory. The record is deep-copied so the
// caller cannot mutate stored state through a retained pointer, matching
// the isolation a serializing store would give.
func (s *Store) Put(ctx context.Context, session *domain.Session) error {
	cp := session.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.ID] = cp
	return nil
}

// Get retrieves a session copy from memory.
func (s *Store) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return session.Clone(), nil
}

// List returns copies of all stored sessions.
func (s *Store) List(ctx context.Context) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]*domain.Session, 0, len(s.data))
	for _, session := range s.data {
		sessions = append(sessions, session.Clone())
	}
	return sessions, nil
}

// Remove deletes the session. Removing a missing session is a no-op.
func (s *Store) Remove(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sessionID)
	return nil
}
