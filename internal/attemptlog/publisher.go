package attemptlog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"startline/pkg/requestcontext"
)

// Publisher hands attempts to the background worker. Emit never blocks: when
// the buffer is full the attempt is dropped, because the primary admission
// flow must not wait on audit I/O.
type Publisher struct {
	inbox chan Attempt
}

func NewPublisher(bufferSize int) *Publisher {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Publisher{inbox: make(chan Attempt, bufferSize)}
}

// Emit queues an attempt for persistence. Returns whether it was accepted;
// callers only use this for metrics, never for control flow.
func (p *Publisher) Emit(ctx context.Context, attempt Attempt) bool {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = requestcontext.Now(ctx)
	}
	select {
	case p.inbox <- attempt:
		return true
	default:
		return false
	}
}

// Inbox exposes the consumption side for the worker.
func (p *Publisher) Inbox() <-chan Attempt {
	return p.inbox
}

// Drain waits briefly for queued attempts to be consumed during shutdown.
func (p *Publisher) Drain(timeout time.Duration) {
	deadline := time.After(timeout)
	for {
		if len(p.inbox) == 0 {
			return
		}
		select {
		case <-deadline:
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}
