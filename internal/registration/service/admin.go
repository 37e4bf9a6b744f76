package service

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Roster returns the active registrations for a course in sequence order.
func (e *Engine) Roster(ctx context.Context, courseID string) ([]models.Record, error) {
	if _, err := e.catalog.Get(courseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "course not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
	}
	snap, err := e.snapshot(ctx, courseID)
	if err != nil {
		return nil, ledgerUnavailable(ctx, err)
	}
	return snap.Active(), nil
}

// Report summarises active registrations across the catalog: counts per course,
// households sharing a guardian phone, and submitters in more than one course.
func (e *Engine) Report(ctx context.Context) (*models.Report, error) {
	courses := e.catalog.List()
	rosters := make([][]models.Record, len(courses))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.fanOut)
	for i := range courses {
		g.Go(func() error {
			snap, err := e.snapshot(gctx, courses[i].ID)
			if err != nil {
				return err
			}
			rosters[i] = snap.Active()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, ledgerUnavailable(ctx, err)
	}

	report := &models.Report{
		GeneratedAt: e.now(),
		PerCourse:   make(map[string]int, len(courses)),
		Households:  []models.HouseholdGroup{},
		MultiCourse: []models.MultiCourseSubmitter{},
	}
	households := map[string]map[string]struct{}{}
	bySubmitter := map[string][]string{}

	for i, course := range courses {
		report.PerCourse[course.ID] = len(rosters[i])
		for _, rec := range rosters[i] {
			bySubmitter[rec.SubmitterID] = append(bySubmitter[rec.SubmitterID], course.ID)

			if rec.Applicant == nil || rec.Applicant.GuardianPhone == "" {
				continue
			}
			name := rec.Applicant.FullName
			if name == "" {
				name = rec.SubmitterID
			}
			members, ok := households[rec.Applicant.GuardianPhone]
			if !ok {
				members = map[string]struct{}{}
				households[rec.Applicant.GuardianPhone] = members
			}
			members[name] = struct{}{}
		}
	}

	for phone, members := range households {
		if len(members) < 2 {
			continue
		}
		names := make([]string, 0, len(members))
		for name := range members {
			names = append(names, name)
		}
		sort.Strings(names)
		report.Households = append(report.Households, models.HouseholdGroup{GuardianPhone: phone, Applicants: names})
	}
	sort.Slice(report.Households, func(i, j int) bool {
		return report.Households[i].GuardianPhone < report.Households[j].GuardianPhone
	})

	for submitter, courseIDs := range bySubmitter {
		if len(courseIDs) < 2 {
			continue
		}
		sort.Strings(courseIDs)
		report.MultiCourse = append(report.MultiCourse, models.MultiCourseSubmitter{SubmitterID: submitter, Courses: courseIDs})
	}
	sort.Slice(report.MultiCourse, func(i, j int) bool {
		return report.MultiCourse[i].SubmitterID < report.MultiCourse[j].SubmitterID
	})

	return report, nil
}

func (e *Engine) snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	ctx, cancel := e.withStoreTimeout(ctx)
	defer cancel()
	return e.ledger.Snapshot(ctx, courseID)
}
