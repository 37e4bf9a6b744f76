package source

import (
	"context"
	"database/sql"
	"fmt"

	"registrar/internal/catalog/models"
	"registrar/pkg/platform/tx"
)

// Postgres loads active courses from the courses table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) Name() string { return "postgres" }

func (s *Postgres) Load(ctx context.Context) ([]models.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, capacity, opens_at, closes_at, min_age, max_age
		FROM courses
		WHERE active
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query courses: %w", err)
	}
	defer rows.Close()

	var courses []models.Course
	for rows.Next() {
		var c models.Course
		if err := rows.Scan(&c.ID, &c.Name, &c.Capacity, &c.OpensAt, &c.ClosesAt, &c.MinAge, &c.MaxAge); err != nil {
			return nil, fmt.Errorf("scan course: %w", err)
		}
		c.OpensAt = c.OpensAt.UTC()
		c.ClosesAt = c.ClosesAt.UTC()
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate courses: %w", err)
	}
	return courses, nil
}

// Upsert writes a course definition. Used by seeding tools and tests.
func (s *Postgres) Upsert(ctx context.Context, c models.Course) error {
	_, err := tx.ExecerFrom(ctx, s.db).ExecContext(ctx, `
		INSERT INTO courses (id, name, capacity, opens_at, closes_at, min_age, max_age, active, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			capacity = EXCLUDED.capacity,
			opens_at = EXCLUDED.opens_at,
			closes_at = EXCLUDED.closes_at,
			min_age = EXCLUDED.min_age,
			max_age = EXCLUDED.max_age,
			active = TRUE,
			updated_at = NOW()`,
		c.ID, c.Name, c.Capacity, c.OpensAt, c.ClosesAt, c.MinAge, c.MaxAge)
	if err != nil {
		return fmt.Errorf("upsert course %s: %w", c.ID, err)
	}
	return nil
}

// Sync makes the table match courses in one transaction: every course is
// upserted and any active course missing from the set is deactivated.
// Registrations already recorded against a deactivated course are kept.
func (s *Postgres) Sync(ctx context.Context, courses []models.Course) (deactivated int64, err error) {
	ids := make([]string, 0, len(courses))
	for _, c := range courses {
		ids = append(ids, c.ID)
	}
	err = tx.Run(ctx, s.db, func(ctx context.Context) error {
		for _, c := range courses {
			if err := s.Upsert(ctx, c); err != nil {
				return err
			}
		}
		res, err := tx.ExecerFrom(ctx, s.db).ExecContext(ctx, `
			UPDATE courses SET active = FALSE, updated_at = NOW()
			WHERE active AND NOT (id = ANY($1))`, ids)
		if err != nil {
			return fmt.Errorf("deactivate courses: %w", err)
		}
		deactivated, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("sync courses: %w", err)
	}
	return deactivated, nil
}
