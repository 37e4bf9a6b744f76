package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failN(b *Breaker, n int) (last StateChange) {
	for range n {
		_, last = b.RecordFailure()
	}
	return last
}

func TestBreaker_StartsClosed(t *testing.T) {
	b := New("ledger")
	assert.Equal(t, "ledger", b.Name())
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_FailureThreshold(t *testing.T) {
	b := New("ledger", WithFailureThreshold(3))

	change := failN(b, 2)
	assert.False(t, change.Opened)
	assert.False(t, b.IsOpen(), "below threshold")

	useFallback, change := b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened)
	assert.True(t, b.IsOpen())

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "already open reports no transition")
}

func TestBreaker_SuccessClearsFailureStreak(t *testing.T) {
	b := New("ledger", WithFailureThreshold(3))
	failN(b, 2)
	b.RecordSuccess()
	failN(b, 2)
	assert.False(t, b.IsOpen(), "streak restarted after success")
	failN(b, 1)
	assert.True(t, b.IsOpen())
}

func TestBreaker_Recovery(t *testing.T) {
	tests := []struct {
		name     string
		required int
		steps    []bool // true = success
		wantOpen bool
	}{
		{name: "single probe closes", required: 1, steps: []bool{true}, wantOpen: false},
		{name: "needs consecutive successes", required: 2, steps: []bool{true}, wantOpen: true},
		{name: "failure restarts the count", required: 3, steps: []bool{true, true, false, true, true}, wantOpen: true},
		{name: "restarted count completes", required: 3, steps: []bool{true, false, true, true, true}, wantOpen: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("ledger", WithFailureThreshold(1), WithSuccessThreshold(tt.required))
			failN(b, 1)
			require.True(t, b.IsOpen())

			for _, ok := range tt.steps {
				if ok {
					b.RecordSuccess()
				} else {
					b.RecordFailure()
				}
			}
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreaker_ClosingReportsTransition(t *testing.T) {
	b := New("ledger", WithFailureThreshold(1), WithSuccessThreshold(1))
	failN(b, 1)

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreaker_Reset(t *testing.T) {
	b := New("ledger", WithFailureThreshold(1))
	failN(b, 1)
	b.Reset()
	assert.Equal(t, StateClosed, b.State())
	assert.True(t, b.Allow())
}

func TestBreaker_AllowProbesAfterCooldown(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	b := New("ledger",
		WithFailureThreshold(1),
		WithCooldown(100*time.Millisecond),
		WithClock(func() time.Time { return now }),
	)

	failN(b, 1)
	assert.False(t, b.Allow(), "no probe inside cooldown")

	now = now.Add(150 * time.Millisecond)
	assert.True(t, b.Allow(), "first probe after cooldown")
	assert.False(t, b.Allow(), "only one probe per cooldown")
}
