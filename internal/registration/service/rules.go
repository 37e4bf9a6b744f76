package service

import (
	"time"

	catalogmodels "registrar/internal/catalog/models"
	"registrar/internal/registration/models"
)

// registrationRule returns the record to append, or the terminal reason the
// request cannot be admitted against snap. Checks run in a fixed order so the
// reported reason is stable: window, duplicate, eligibility, capacity.
func registrationRule(course *catalogmodels.Course, req *models.RegistrationRequest) decideFunc {
	return func(snap *models.Snapshot, now time.Time) (*models.Record, models.Reason) {
		if !course.IsOpen(req.SubmittedAt) {
			return nil, models.ReasonWindowClosed
		}
		if _, ok := snap.ActiveFor(req.SubmitterID); ok {
			return nil, models.ReasonDuplicate
		}
		// Age bounds can only be enforced when the applicant's age is known.
		if req.Applicant != nil && !course.AdmitsAge(req.Applicant.Age) {
			return nil, models.ReasonIneligible
		}
		if snap.ActiveCount() >= course.Capacity {
			return nil, models.ReasonCapacityExhausted
		}
		return &models.Record{
			CourseID:         req.CourseID,
			Kind:             models.KindRegistration,
			SubmitterID:      req.SubmitterID,
			IdempotencyToken: req.IdempotencyToken,
			SubmittedAt:      req.SubmittedAt,
			AcceptedAt:       now,
			Applicant:        req.Applicant,
		}, ""
	}
}

// cancelRule supersedes the submitter's active registration, if there is one.
func cancelRule(req *models.WithdrawRequest) decideFunc {
	return func(snap *models.Snapshot, now time.Time) (*models.Record, models.Reason) {
		active, ok := snap.ActiveFor(req.SubmitterID)
		if !ok {
			return nil, models.ReasonNotRegistered
		}
		submitted := req.RequestedAt
		if submitted.IsZero() {
			submitted = now
		}
		return &models.Record{
			CourseID:         req.CourseID,
			Kind:             models.KindCancel,
			SubmitterID:      req.SubmitterID,
			IdempotencyToken: req.IdempotencyToken,
			SubmittedAt:      submitted,
			AcceptedAt:       now,
			CancelsSequence:  active.Sequence,
			Reason:           req.Reason,
			ActorID:          req.ActorID,
		}, ""
	}
}
