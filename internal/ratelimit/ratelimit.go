// Package ratelimit throttles registration submissions per client so that a
// single caller cannot monopolise the ledger when a popular course opens.
package ratelimit

import (
	"context"
	"time"
)

// Result is the verdict for one request against a sliding window.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is how long a refused caller should wait, rounded up to whole seconds.
	RetryAfter time.Duration
}

// Store counts requests per key over a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*Result, error)
}

// Policy is the limit applied to one endpoint class.
type Policy struct {
	Name   string
	Limit  int
	Window time.Duration
}

// Key builds the bucket key for a policy and client.
func (p Policy) Key(client string) string {
	return "rl:" + p.Name + ":" + client
}

// RetryAfterFor rounds the wait until resetAt up to whole seconds, minimum one.
func RetryAfterFor(resetAt, now time.Time) time.Duration {
	d := resetAt.Sub(now)
	if d <= 0 {
		return time.Second
	}
	return (d + time.Second - 1).Truncate(time.Second)
}
