package audit

import (
	"context"
	"sync"
)

// Store persists audit events. Events are append-only.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// MemoryStore keeps the most recent events in process, oldest evicted first.
type MemoryStore struct {
	mu       sync.RWMutex
	events   []Event
	capacity int
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryStore{capacity: capacity}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if over := len(s.events) - s.capacity; over > 0 {
		s.events = append([]Event(nil), s.events[over:]...)
	}
	return nil
}

// ListRecent returns up to limit events, newest first.
func (s *MemoryStore) ListRecent(_ context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.events) {
		limit = len(s.events)
	}
	out := make([]Event, 0, limit)
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
