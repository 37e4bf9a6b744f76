package catalog

import (
	"context"
	"log/slog"
	"time"
)

// Refresher is the part of Catalog the worker drives.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// RefreshWorker periodically reloads the catalog. Failures are logged and the
// previous snapshot keeps serving.
type RefreshWorker struct {
	catalog  Refresher
	interval time.Duration
	logger   *slog.Logger
}

// WorkerOption configures RefreshWorker.
type WorkerOption func(*RefreshWorker)

// WithRefreshInterval overrides the refresh interval when greater than zero.
func WithRefreshInterval(interval time.Duration) WorkerOption {
	return func(w *RefreshWorker) {
		if interval > 0 {
			w.interval = interval
		}
	}
}

// WithWorkerLogger overrides the logger used for refresh errors.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(w *RefreshWorker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewRefreshWorker(catalog Refresher, opts ...WorkerOption) *RefreshWorker {
	w := &RefreshWorker{
		catalog:  catalog,
		interval: time.Minute,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start refreshes on every tick until ctx is cancelled.
func (w *RefreshWorker) Start(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.WarnContext(ctx, "periodic catalog refresh failed", "error", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// RunOnce performs a single refresh bounded by the worker interval.
func (w *RefreshWorker) RunOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, w.interval)
	defer cancel()
	return w.catalog.Refresh(ctx)
}
