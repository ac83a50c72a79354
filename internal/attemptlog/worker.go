package attemptlog

import (
	"context"
	"log/slog"
)

// Sink receives attempts fanned out beyond the primary store, e.g. a Kafka
// topic for the abuse-analysis pipeline.
type Sink interface {
	Publish(ctx context.Context, attempt Attempt) error
}

// Worker consumes attempts from the publisher and persists them. Store and
// sink failures are logged and swallowed: the attempt log is best-effort by
// contract.
type Worker struct {
	store  Store
	sink   Sink
	inbox  <-chan Attempt
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Attempt, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// WithSink attaches an optional secondary sink.
func (w *Worker) WithSink(sink Sink) *Worker {
	w.sink = sink
	return w
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case attempt := <-w.inbox:
			if err := w.store.Append(ctx, attempt); err != nil {
				w.logger.ErrorContext(ctx, "attempt log append failed",
					"attempt_id", attempt.ID,
					"error", err,
				)
			}
			if w.sink != nil {
				if err := w.sink.Publish(ctx, attempt); err != nil {
					w.logger.WarnContext(ctx, "attempt log sink publish failed",
						"attempt_id", attempt.ID,
						"error", err,
					)
				}
			}
		}
	}
}
