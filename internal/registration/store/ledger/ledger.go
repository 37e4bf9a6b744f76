// Package ledger holds the append-only registration record stores.
//
// Every backend implements the same compare-and-append contract:
//
//   - Snapshot returns all of a course's records plus an opaque version token.
//   - Append commits a record only if the course is still at the expected version,
//     assigning the next gap-free sequence number.
//   - FindByIdempotencyToken returns the committed record for a token.
//
// Error contract (errors may be wrapped; match with errors.Is):
//   - sentinel.ErrConflict: the expected version is stale. Nothing was written.
//   - ErrDuplicateToken: the token is already committed. Nothing was written.
//   - sentinel.ErrNotFound: FindByIdempotencyToken has no record for the token.
//   - sentinel.ErrUnavailable or any other error: the outcome of the call is unknown.
//
// Ledgers report what happened and never retry; the resolver owns policy.
package ledger

import (
	"context"
	"fmt"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/sentinel"
)

// ErrDuplicateToken reports an append whose idempotency token is already committed.
var ErrDuplicateToken = fmt.Errorf("idempotency token already committed: %w", sentinel.ErrAlreadyUsed)

//go:generate mockgen -source=ledger.go -destination=mocks/mocks.go -package=mocks Ledger

// Ledger is the registration record store.
type Ledger interface {
	Snapshot(ctx context.Context, courseID string) (*models.Snapshot, error)
	Append(ctx context.Context, record *models.Record, expected models.Version) (int64, error)
	FindByIdempotencyToken(ctx context.Context, token string) (*models.Record, error)
}

func validateAppend(record *models.Record, expected models.Version) error {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if record.CourseID == "" || record.IdempotencyToken == "" {
		return fmt.Errorf("record course_id and idempotency_token are required")
	}
	if expected < 0 {
		return fmt.Errorf("invalid expected version %d", expected)
	}
	return nil
}

func cloneRecord(r models.Record) models.Record {
	if r.Applicant != nil {
		a := *r.Applicant
		r.Applicant = &a
	}
	return r
}
