package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Store records attempts against a key inside a rolling window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
	Reset(ctx context.Context, key string) error
}

// Service is the session attempt limiter used by the admission path.
type Service struct {
	store       Store
	maxAttempts int
	window      time.Duration
}

func NewService(store Store, maxAttempts int, window time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("rate limit store is required")
	}
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("max attempts must be positive")
	}
	if window <= 0 {
		return nil, fmt.Errorf("window must be positive")
	}
	return &Service{store: store, maxAttempts: maxAttempts, window: window}, nil
}

// CheckSession counts one admission attempt for the session and reports
// whether it may proceed. Every call counts, including ones that later fail
// admission, so a retry storm burns the budget.
func (s *Service) CheckSession(ctx context.Context, sessionID string) (*Result, error) {
	key := "admission:session:" + SanitizeKeySegment(sessionID)
	return s.store.Allow(ctx, key, s.maxAttempts, s.window)
}
