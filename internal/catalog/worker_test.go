package catalog

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("refresh without deadline")
	}
	return r.err
}

func TestRefreshWorker_RunOnce(t *testing.T) {
	r := &countingRefresher{}
	w := NewRefreshWorker(r, WithRefreshInterval(time.Second))

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestRefreshWorker_StartStopsOnCancel(t *testing.T) {
	r := &countingRefresher{err: errors.New("source down")}
	w := NewRefreshWorker(r, WithRefreshInterval(5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, time.Second, time.Millisecond,
		"worker keeps ticking after failures")
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestRefreshWorker_IgnoresNonPositiveInterval(t *testing.T) {
	w := NewRefreshWorker(&countingRefresher{}, WithRefreshInterval(0))
	assert.Equal(t, time.Minute, w.interval)
}
