// Package catalog holds the authoritative course definitions.
//
// The catalog is the only shared mutable state on the submission path. It is an
// immutable snapshot behind an atomic pointer; Refresh builds and validates a new
// snapshot off to the side and swaps it in one step, so readers see either the old
// set of courses or the new one, never a mix.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"registrar/internal/catalog/metrics"
	"registrar/internal/catalog/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Source loads the full set of course definitions.
type Source interface {
	Load(ctx context.Context) ([]models.Course, error)
	Name() string
}

type snapshot struct {
	byID     map[string]models.Course
	ordered  []models.Course
	loadedAt time.Time
}

// Catalog serves course definitions from the most recent valid snapshot.
type Catalog struct {
	source  Source
	current atomic.Pointer[snapshot]
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Catalog.
type Option func(*Catalog)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) {
		c.metrics = m
	}
}

// WithClock overrides the clock used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(c *Catalog) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates an empty catalog backed by source. Call Refresh to load it.
func New(source Source, opts ...Option) *Catalog {
	c := &Catalog{
		source: source,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.current.Store(&snapshot{byID: map[string]models.Course{}})
	return c
}

// NewStatic creates a catalog preloaded with courses. Intended for tests and tools.
func NewStatic(courses []models.Course, opts ...Option) (*Catalog, error) {
	c := New(nil, opts...)
	snap, err := buildSnapshot(courses, c.now())
	if err != nil {
		return nil, err
	}
	c.current.Store(snap)
	return c, nil
}

// Get returns the course definition, or sentinel.ErrNotFound.
func (c *Catalog) Get(courseID string) (*models.Course, error) {
	course, ok := c.current.Load().byID[courseID]
	if !ok {
		return nil, fmt.Errorf("course %s: %w", courseID, sentinel.ErrNotFound)
	}
	return &course, nil
}

// List returns every course sorted by ID. The slice is a copy.
func (c *Catalog) List() []models.Course {
	ordered := c.current.Load().ordered
	out := make([]models.Course, len(ordered))
	copy(out, ordered)
	return out
}

// LoadedAt is when the current snapshot was installed. Zero before the first refresh.
func (c *Catalog) LoadedAt() time.Time {
	return c.current.Load().loadedAt
}

// Health fails readiness until a snapshot has been installed.
func (c *Catalog) Health(context.Context) error {
	if c.LoadedAt().IsZero() {
		return fmt.Errorf("catalog not loaded: %w", sentinel.ErrUnavailable)
	}
	return nil
}

// Refresh re-reads the source and atomically replaces the snapshot.
// On any failure the previous snapshot stays in place.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return dErrors.New(dErrors.CodeUnavailable, "catalog refresh failed: no source configured")
	}

	start := time.Now()
	courses, err := c.source.Load(ctx)
	if err != nil {
		c.metrics.IncrementRefresh(metrics.ResultFailed)
		c.logger.ErrorContext(ctx, "catalog_refresh_failed",
			"source", c.source.Name(),
			"error", err,
		)
		return refreshFailed(err)
	}

	snap, err := buildSnapshot(courses, c.now())
	if err != nil {
		c.metrics.IncrementRefresh(metrics.ResultInvalid)
		c.logger.ErrorContext(ctx, "catalog_refresh_failed",
			"source", c.source.Name(),
			"error", err,
		)
		return refreshFailed(err)
	}

	c.current.Store(snap)
	c.metrics.IncrementRefresh(metrics.ResultOK)
	c.metrics.SetCourses(len(snap.ordered))
	c.metrics.ObserveRefreshLatency(time.Since(start))
	c.logger.InfoContext(ctx, "catalog_refreshed",
		"source", c.source.Name(),
		"courses", len(snap.ordered),
	)
	return nil
}

// refreshFailed always reports CodeUnavailable, whatever the source returned.
func refreshFailed(err error) error {
	return &dErrors.Error{Code: dErrors.CodeUnavailable, Message: "catalog refresh failed", Err: err}
}

func buildSnapshot(courses []models.Course, now time.Time) (*snapshot, error) {
	byID := make(map[string]models.Course, len(courses))
	for _, course := range courses {
		if err := course.Validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[course.ID]; dup {
			return nil, fmt.Errorf("duplicate course id %s", course.ID)
		}
		byID[course.ID] = course
	}

	ordered := make([]models.Course, 0, len(byID))
	for _, course := range byID {
		ordered = append(ordered, course)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	return &snapshot{byID: byID, ordered: ordered, loadedAt: now}, nil
}
