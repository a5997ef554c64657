package memory

import (
	"context"
	"sync"

	"github.com/aretw0/branchpoll/pkg/domain"
)

// SessionStore implements ports.SessionStore in memory.
// Safe for concurrent use.
type SessionStore struct {
	data map[domain.SessionKey]*domain.SessionState
	mu   sync.RWMutex
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		data: make(map[domain.SessionKey]*domain.SessionState),
	}
}

// Save persists the state in memory.
func (s *SessionStore) Save(ctx context.Context, state *domain.SessionState) error {
	// Deep copy to ensure isolation, similar to serialization
	copied := state.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[state.SessionKey] = copied
	return nil
}

// Load retrieves the state from memory.
func (s *SessionStore) Load(ctx context.Context, key domain.SessionKey) (*domain.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.data[key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	// Copy on read so the caller can't mutate store state directly by pointer
	return state.Clone(), nil
}

// Delete removes the state.
func (s *SessionStore) Delete(ctx context.Context, key domain.SessionKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// DeletePoll removes every session of a poll.
func (s *SessionStore) DeletePoll(ctx context.Context, pollID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.data {
		if key.PollID == pollID {
			delete(s.data, key)
		}
	}
	return nil
}

// Len returns the number of stored sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
