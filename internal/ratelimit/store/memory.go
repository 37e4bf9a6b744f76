// Package store provides ratelimit.Store implementations.
package store

import (
	"context"
	"sync"
	"time"

	"registrar/internal/ratelimit"
)

// Memory is a per-process sliding window store. Use Redis when several
// server instances share one ledger.
type Memory struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
	now     func() time.Time
}

type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
}

func NewMemory() *Memory {
	return &Memory{buckets: make(map[string]*slidingWindow), now: time.Now}
}

// NewMemoryWithClock is NewMemory with an injected clock, for tests.
func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (s *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (*ratelimit.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sw := s.bucket(key, window)
	sw.cleanup(now)

	if len(sw.timestamps) < limit {
		sw.timestamps = append(sw.timestamps, now)
		return &ratelimit.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - len(sw.timestamps),
			ResetAt:   sw.timestamps[0].Add(window),
		}, nil
	}

	// The window frees a slot when its oldest entry expires.
	resetAt := now.Add(window)
	if len(sw.timestamps) > 0 {
		resetAt = sw.timestamps[0].Add(window)
	}
	return &ratelimit.Result{
		Allowed:    false,
		Limit:      limit,
		ResetAt:    resetAt,
		RetryAfter: ratelimit.RetryAfterFor(resetAt, now),
	}, nil
}

// Sweep drops buckets with no live entries so idle clients do not accumulate.
func (s *Memory) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for key, sw := range s.buckets {
		sw.cleanup(now)
		if len(sw.timestamps) == 0 {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}

func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// bucket must be called with s.mu held.
func (s *Memory) bucket(key string, window time.Duration) *slidingWindow {
	if sw := s.buckets[key]; sw != nil {
		sw.window = window
		return sw
	}
	sw := &slidingWindow{window: window}
	s.buckets[key] = sw
	return sw
}
