package service

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"registrar/internal/registration/metrics"
)

// courseCount is the cached part of a course status. Window state depends on the
// clock and is computed on every read.
type courseCount struct {
	active int
	asOf   time.Time
}

// StatusCache holds recent active counts per course. Status is for display only,
// so a short TTL of staleness is acceptable; Submit never reads from it.
// Concurrent misses for the same course collapse into one ledger read.
type StatusCache struct {
	entries *gocache.Cache
	group   singleflight.Group
	metrics *metrics.Metrics
}

// NewStatusCache returns nil when ttl is not positive, which disables caching.
func NewStatusCache(ttl time.Duration, m *metrics.Metrics) *StatusCache {
	if ttl <= 0 {
		return nil
	}
	return &StatusCache{
		entries: gocache.New(ttl, 2*ttl),
		metrics: m,
	}
}

func (c *StatusCache) load(ctx context.Context, courseID string, fetch func(ctx context.Context) (courseCount, error)) (courseCount, error) {
	if c == nil {
		return fetch(ctx)
	}
	if v, ok := c.entries.Get(courseID); ok {
		c.metrics.IncrementStatusCache(true)
		return v.(courseCount), nil
	}
	c.metrics.IncrementStatusCache(false)

	v, err, _ := c.group.Do(courseID, func() (any, error) {
		count, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		c.entries.Set(courseID, count, gocache.DefaultExpiration)
		return count, nil
	})
	if err != nil {
		return courseCount{}, err
	}
	return v.(courseCount), nil
}

// Invalidate drops the cached count for a course after a local commit.
func (c *StatusCache) Invalidate(courseID string) {
	if c == nil {
		return
	}
	c.entries.Delete(courseID)
}
