package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"registrar/pkg/platform/sentinel"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes  int32
	Errors     int32
	Conflicts  int32
	NotFounds  int32
	Duplicates int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.Conflicts + r.NotFounds + r.Duplicates
}

// RunConcurrent executes fn in parallel goroutines released together, and
// buckets the returned errors by sentinel.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, conflicts, notFounds, duplicates atomic.Int32
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			case errors.Is(err, sentinel.ErrNotFound):
				notFounds.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				duplicates.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes:  successes.Load(),
		Errors:     errs.Load(),
		Conflicts:  conflicts.Load(),
		NotFounds:  notFounds.Load(),
		Duplicates: duplicates.Load(),
	}
}

// RunConcurrentCtx executes fn in parallel goroutines with context support.
func RunConcurrentCtx(ctx context.Context, goroutines int, fn func(ctx context.Context, idx int) error) *ConcurrentResult {
	return RunConcurrent(goroutines, func(idx int) error {
		return fn(ctx, idx)
	})
}

// RunConcurrentCollect executes fn in parallel and returns each goroutine's value,
// indexed by goroutine, for assertions beyond the standard error buckets.
func RunConcurrentCollect[T any](goroutines int, fn func(idx int) T) []T {
	var wg sync.WaitGroup
	out := make([]T, goroutines)
	start := make(chan struct{})

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			out[idx] = fn(idx)
		}(i)
	}

	close(start)
	wg.Wait()
	return out
}
