package attemptlog

import (
	"context"
	"sync"
)

// Store persists attempts. Append-only.
type Store interface {
	Append(ctx context.Context, attempt Attempt) error
	ListBySession(ctx context.Context, sessionID string) ([]Attempt, error)
}

// InMemoryStore keeps attempts in memory for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	attempts []Attempt
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, attempt Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, attempt)
	return nil
}

func (s *InMemoryStore) ListBySession(_ context.Context, sessionID string) ([]Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Attempt
	for _, a := range s.attempts {
		if a.SessionID == sessionID {
			result = append(result, a)
		}
	}
	return result, nil
}

// All returns every stored attempt; test helper.
func (s *InMemoryStore) All() []Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Attempt{}, s.attempts...)
}
