package audit

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresStore writes events to admin_audit_events.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Append(ctx context.Context, e Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_audit_events
			(id, occurred_at, action, actor_id, actor_role, course_id, submitter_id, sequence, reason, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.Timestamp, e.Action, e.ActorID, e.ActorRole, e.CourseID, e.SubmitterID, e.Sequence, e.Reason, e.RequestID,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, occurred_at, action, actor_id, actor_role, course_id, submitter_id, sequence, reason, request_id
		FROM admin_audit_events
		ORDER BY occurred_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.ActorID, &e.ActorRole,
			&e.CourseID, &e.SubmitterID, &e.Sequence, &e.Reason, &e.RequestID); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
