// Package service implements the registration engine.
//
// Submit runs a fixed pipeline: idempotency lookup, catalog lookup, optimistic
// resolution against the ledger, and translation into a Result. Business outcomes
// (accepted, rejected, contended, failed) are values on Result; errors are
// reserved for malformed input, token misuse, and caller cancellation.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "registrar/internal/catalog/models"
	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/store/ledger"
)

// Catalog is the read side of the course catalog.
type Catalog interface {
	Get(courseID string) (*catalogmodels.Course, error)
	List() []catalogmodels.Course
}

// Publisher is notified of every newly committed record.
type Publisher interface {
	Published(ctx context.Context, record *models.Record)
}

// Engine is the caller-facing registration service.
type Engine struct {
	catalog      Catalog
	ledger       ledger.Ledger
	resolver     *Resolver
	cache        *StatusCache
	publisher    Publisher
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
	now          func() time.Time
	storeTimeout time.Duration
	fanOut       int
	resolverOpts []ResolverOption
}

// Option configures the Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the clock used for acceptance timestamps and window display.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithStatusCache enables cached status reads.
func WithStatusCache(c *StatusCache) Option {
	return func(e *Engine) {
		e.cache = c
	}
}

// WithResolverOptions tunes the retry policy and store timeout.
func WithResolverOptions(opts ...ResolverOption) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, opts...)
	}
}

// WithStatusFanOut bounds concurrent snapshot reads when listing every course.
func WithStatusFanOut(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.fanOut = n
		}
	}
}

// New constructs an Engine with required collaborators and options applied.
func New(catalog Catalog, l ledger.Ledger, opts ...Option) (*Engine, error) {
	if catalog == nil || l == nil {
		return nil, fmt.Errorf("catalog and ledger are required")
	}
	e := &Engine{
		catalog: catalog,
		ledger:  l,
		logger:  slog.Default(),
		tracer:  otel.Tracer("registrar/registration"),
		now:     time.Now,
		fanOut:  8,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	resolverOpts := append([]ResolverOption{
		withResolverClock(e.now),
		withResolverLogger(e.logger),
		withResolverMetrics(e.metrics),
		withResolverTracer(e.tracer),
	}, e.resolverOpts...)
	e.resolver = NewResolver(l, resolverOpts...)
	e.storeTimeout = e.resolver.storeTimeout
	return e, nil
}

func (e *Engine) withStoreTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storeTimeout)
}
