package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"registrar/pkg/requestcontext"
)

// Publisher stamps events and hands them to the worker without blocking the
// request. When the buffer is full the event is logged and dropped.
type Publisher struct {
	store  Store
	inbox  chan Event
	logger *slog.Logger
	now    func() time.Time
}

type Option func(*Publisher)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		p.now = now
	}
}

func NewPublisher(store Store, buffer int, opts ...Option) *Publisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &Publisher{
		store:  store,
		inbox:  make(chan Event, buffer),
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit queues an event. Actor and request ID default from the context.
func (p *Publisher) Emit(ctx context.Context, e Event) {
	if p == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = p.now().UTC()
	}
	if e.RequestID == "" {
		e.RequestID = requestcontext.RequestID(ctx)
	}
	if staff, ok := requestcontext.Staff(ctx); ok {
		if e.ActorID == "" {
			e.ActorID = staff.Subject
		}
		if e.ActorRole == "" {
			e.ActorRole = staff.Role
		}
	}

	select {
	case p.inbox <- e:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, event dropped",
			"action", e.Action,
			"actor_id", e.ActorID,
			"request_id", e.RequestID,
		)
	}
}

// Recent lists persisted events, newest first.
func (p *Publisher) Recent(ctx context.Context, limit int) ([]Event, error) {
	return p.store.ListRecent(ctx, limit)
}

// Worker returns the consumer that persists queued events.
func (p *Publisher) Worker() *Worker {
	return NewWorker(p.store, p.inbox, p.logger)
}
