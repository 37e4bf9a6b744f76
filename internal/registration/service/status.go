package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	catalogmodels "registrar/internal/catalog/models"
	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Status reports remaining capacity for display. It may lag the ledger by the
// status cache TTL.
func (e *Engine) Status(ctx context.Context, courseID string) (*models.CourseStatus, error) {
	course, err := e.catalog.Get(courseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "course not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
	}
	return e.status(ctx, course)
}

// ListStatuses reports every catalog course, reading the ledger concurrently.
func (e *Engine) ListStatuses(ctx context.Context) ([]*models.CourseStatus, error) {
	courses := e.catalog.List()
	out := make([]*models.CourseStatus, len(courses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for i := range courses {
		g.Go(func() error {
			st, err := e.status(gctx, &courses[i])
			if err != nil {
				return err
			}
			out[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) status(ctx context.Context, course *catalogmodels.Course) (*models.CourseStatus, error) {
	count, err := e.cache.load(ctx, course.ID, func(ctx context.Context) (courseCount, error) {
		snap, err := e.snapshot(ctx, course.ID)
		if err != nil {
			return courseCount{}, err
		}
		return courseCount{active: snap.ActiveCount(), asOf: e.now()}, nil
	})
	if err != nil {
		return nil, ledgerUnavailable(ctx, err)
	}

	remaining := course.Capacity - count.active
	if remaining < 0 {
		remaining = 0
	}
	return &models.CourseStatus{
		CourseID:  course.ID,
		Name:      course.Name,
		Capacity:  course.Capacity,
		Active:    count.active,
		Remaining: remaining,
		Open:      course.IsOpen(e.now()),
		OpensAt:   course.OpensAt,
		ClosesAt:  course.ClosesAt,
		AsOf:      count.asOf,
	}, nil
}

// ledgerUnavailable maps a failed read to a coded error, distinguishing caller cancellation.
func ledgerUnavailable(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return cancelled(ctx.Err())
	}
	return dErrors.Wrap(err, dErrors.CodeUnavailable, "registration ledger unavailable")
}
