package verification

import (
	"context"
	"sync"
)

// Store keeps the current verification record per browsing session.
// Records are small and short-lived; they exist so the admission step can
// ask "is this draft currently verified" without trusting the client.
type Store interface {
	Save(ctx context.Context, record Record) error
	Get(ctx context.Context, sessionID string) (*Record, error)
}

// InMemoryStore is the default store. Verification state is advisory and
// session-scoped, so losing it on restart only forces a re-verify.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, record Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.SessionID] = record
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, sessionID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[sessionID]
	if !ok {
		return nil, nil
	}
	return &record, nil
}
