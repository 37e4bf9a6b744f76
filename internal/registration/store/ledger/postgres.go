package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"registrar/internal/registration/models"
	"registrar/pkg/platform/sentinel"
)

const (
	constraintSequence = "registration_records_pkey"
	constraintToken    = "registration_records_token_key"
)

// Postgres persists records in registration_records. The (course_id, sequence)
// primary key is the compare-and-append precondition: two appends built on the
// same version race for the same sequence and only one insert can win.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed ledger.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const recordColumns = `course_id, sequence, kind, submitter_id, idempotency_token,
	submitted_at, accepted_at, cancels_sequence, reason, actor_id, applicant`

func (s *Postgres) Snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM registration_records
		WHERE course_id = $1
		ORDER BY sequence
	`, courseID)
	if err != nil {
		return nil, fmt.Errorf("snapshot course %s: %w", courseID, err)
	}
	defer rows.Close()

	snap := &models.Snapshot{CourseID: courseID}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		snap.Records = append(snap.Records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("snapshot course %s: %w", courseID, err)
	}
	if n := len(snap.Records); n > 0 {
		snap.Version = models.Version(snap.Records[n-1].Sequence)
	}
	return snap, nil
}

// Append inserts the record at sequence expected+1. The guarded INSERT ... SELECT
// refuses versions ahead of the ledger so sequences stay gap-free.
func (s *Postgres) Append(ctx context.Context, record *models.Record, expected models.Version) (int64, error) {
	if err := validateAppend(record, expected); err != nil {
		return 0, err
	}
	applicant, err := marshalApplicant(record.Applicant)
	if err != nil {
		return 0, err
	}

	sequence := int64(expected) + 1
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registration_records (`+recordColumns+`)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb
		WHERE (SELECT COALESCE(MAX(sequence), 0) FROM registration_records WHERE course_id = $1) = $12
	`,
		record.CourseID,
		sequence,
		string(record.Kind),
		record.SubmitterID,
		record.IdempotencyToken,
		record.SubmittedAt,
		record.AcceptedAt,
		nullableSequence(record.CancelsSequence),
		record.Reason,
		record.ActorID,
		applicant,
		int64(expected),
	)
	if err != nil {
		switch uniqueViolation(err) {
		case constraintToken:
			return 0, ErrDuplicateToken
		case constraintSequence:
			return 0, sentinel.ErrConflict
		}
		return 0, fmt.Errorf("append record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("append record rows: %w", err)
	}
	if n == 0 {
		return 0, sentinel.ErrConflict
	}
	return sequence, nil
}

func (s *Postgres) FindByIdempotencyToken(ctx context.Context, token string) (*models.Record, error) {
	rec, err := scanRecord(s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM registration_records
		WHERE idempotency_token = $1
	`, token))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find record by token: %w", err)
	}
	return rec, nil
}

type recordRow interface {
	Scan(dest ...any) error
}

func scanRecord(row recordRow) (*models.Record, error) {
	var (
		rec       models.Record
		kind      string
		cancels   sql.NullInt64
		applicant []byte
	)
	if err := row.Scan(
		&rec.CourseID,
		&rec.Sequence,
		&kind,
		&rec.SubmitterID,
		&rec.IdempotencyToken,
		&rec.SubmittedAt,
		&rec.AcceptedAt,
		&cancels,
		&rec.Reason,
		&rec.ActorID,
		&applicant,
	); err != nil {
		return nil, err
	}
	rec.Kind = models.Kind(kind)
	rec.CancelsSequence = cancels.Int64
	rec.SubmittedAt = rec.SubmittedAt.UTC()
	rec.AcceptedAt = rec.AcceptedAt.UTC()
	if len(applicant) > 0 {
		var a models.Applicant
		if err := json.Unmarshal(applicant, &a); err != nil {
			return nil, fmt.Errorf("decode applicant: %w", err)
		}
		rec.Applicant = &a
	}
	return &rec, nil
}

func marshalApplicant(a *models.Applicant) (*string, error) {
	if a == nil {
		return nil, nil
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode applicant: %w", err)
	}
	s := string(b)
	return &s, nil
}

func nullableSequence(seq int64) sql.NullInt64 {
	return sql.NullInt64{Int64: seq, Valid: seq > 0}
}

// uniqueViolation returns the violated constraint name, or "" for other errors.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return pgErr.ConstraintName
	}
	return ""
}
