package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/circuit"
	"registrar/pkg/platform/sentinel"
)

// Guarded wraps a Ledger with a circuit breaker. While the circuit is open,
// calls fail fast with sentinel.ErrUnavailable instead of waiting on a
// ledger that is known to be down. Conflicts, duplicate tokens, misses and
// caller cancellations are answers, not failures, and do not trip the breaker.
type Guarded struct {
	inner   Ledger
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewGuarded(inner Ledger, breaker *circuit.Breaker, logger *slog.Logger) *Guarded {
	return &Guarded{inner: inner, breaker: breaker, logger: logger}
}

func (g *Guarded) Snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	var snap *models.Snapshot
	err := g.do(ctx, "snapshot", func() error {
		var err error
		snap, err = g.inner.Snapshot(ctx, courseID)
		return err
	})
	return snap, err
}

func (g *Guarded) Append(ctx context.Context, record *models.Record, expected models.Version) (int64, error) {
	var seq int64
	err := g.do(ctx, "append", func() error {
		var err error
		seq, err = g.inner.Append(ctx, record, expected)
		return err
	})
	return seq, err
}

func (g *Guarded) FindByIdempotencyToken(ctx context.Context, token string) (*models.Record, error) {
	var rec *models.Record
	err := g.do(ctx, "find_by_token", func() error {
		var err error
		rec, err = g.inner.FindByIdempotencyToken(ctx, token)
		return err
	})
	return rec, err
}

// Health reports an open circuit as unhealthy.
func (g *Guarded) Health(context.Context) error {
	if g.breaker.IsOpen() {
		return fmt.Errorf("ledger circuit %s is open", g.breaker.Name())
	}
	return nil
}

func (g *Guarded) do(ctx context.Context, op string, fn func() error) error {
	if !g.breaker.Allow() {
		return fmt.Errorf("ledger %s: circuit open: %w", op, sentinel.ErrUnavailable)
	}
	err := fn()
	if isLedgerFailure(ctx, err) {
		if _, change := g.breaker.RecordFailure(); change.Opened && g.logger != nil {
			g.logger.WarnContext(ctx, "ledger_circuit_opened",
				"breaker", g.breaker.Name(),
				"operation", op,
				"error", err,
			)
		}
		return err
	}
	if _, change := g.breaker.RecordSuccess(); change.Closed && g.logger != nil {
		g.logger.InfoContext(ctx, "ledger_circuit_closed", "breaker", g.breaker.Name())
	}
	return err
}

func isLedgerFailure(ctx context.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, sentinel.ErrConflict),
		errors.Is(err, sentinel.ErrNotFound),
		errors.Is(err, sentinel.ErrAlreadyUsed):
		return false
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// the caller gave up; the ledger did nothing wrong
		return false
	default:
		return true
	}
}
