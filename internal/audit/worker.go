package audit

import (
	"context"
	"log/slog"
	"time"
)

// Worker consumes audit events from a channel and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run persists events until ctx is done, then drains what is already queued.
// A failed append is logged; the worker keeps going.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case event := <-w.inbox:
			w.persist(ctx, event)
		}
	}
}

func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case event := <-w.inbox:
			w.persist(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) persist(ctx context.Context, event Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.ErrorContext(ctx, "failed to persist audit event",
			"error", err,
			"action", event.Action,
			"event_id", event.ID,
		)
	}
}
