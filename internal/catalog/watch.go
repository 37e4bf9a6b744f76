package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// FileWatcher refreshes the catalog shortly after the course file changes,
// so edits go live without waiting for the next periodic refresh.
// It watches the parent directory because editors often replace the file by rename.
type FileWatcher struct {
	catalog  Refresher
	path     string
	debounce time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

type WatchOption func(*FileWatcher)

// WithDebounce collapses bursts of events into one refresh.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

func WithWatchLogger(logger *slog.Logger) WatchOption {
	return func(w *FileWatcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

func NewFileWatcher(catalog Refresher, path string, opts ...WatchOption) *FileWatcher {
	w := &FileWatcher{
		catalog:  catalog,
		path:     filepath.Clean(path),
		debounce: 500 * time.Millisecond,
		timeout:  10 * time.Second,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled. A failed refresh is logged and the
// previous snapshot keeps serving.
func (w *FileWatcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer fsw.Close()

	dir := filepath.Dir(w.path)
	if err := fsw.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.refresh(ctx)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.WarnContext(ctx, "course file watch error", "error", err, "path", w.path)
		}
	}
}

func (w *FileWatcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

func (w *FileWatcher) refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if err := w.catalog.Refresh(ctx); err != nil {
		w.logger.WarnContext(ctx, "course file changed but refresh failed", "error", err, "path", w.path)
		return
	}
	w.logger.InfoContext(ctx, "catalog reloaded after course file change", "path", w.path)
}
