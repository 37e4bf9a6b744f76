package models

import (
	"strings"
	"time"

	dErrors "registrar/pkg/domain-errors"
)

// maxTokenLength bounds idempotency tokens and identifiers stored in the ledger.
const maxTokenLength = 128

// RegistrationRequest asks for one submitter to be enrolled in one course.
// It is validated once at the boundary; the resolver never re-validates.
type RegistrationRequest struct {
	SubmitterID      string     `json:"submitter_id"`
	CourseID         string     `json:"course_id"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	IdempotencyToken string     `json:"idempotency_token"`
	Applicant        *Applicant `json:"applicant,omitempty"`
}

// Normalize trims identifiers and normalizes the applicant payload.
func (r *RegistrationRequest) Normalize() {
	r.SubmitterID = strings.TrimSpace(r.SubmitterID)
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.IdempotencyToken = strings.TrimSpace(r.IdempotencyToken)
	if r.Applicant != nil {
		r.Applicant.Normalize()
	}
}

// Validate rejects malformed requests before any ledger access.
func (r *RegistrationRequest) Validate() error {
	if r.SubmitterID == "" {
		return dErrors.New(dErrors.CodeValidation, "submitter_id is required")
	}
	if r.CourseID == "" {
		return dErrors.New(dErrors.CodeValidation, "course_id is required")
	}
	if r.IdempotencyToken == "" {
		return dErrors.New(dErrors.CodeValidation, "idempotency_token is required")
	}
	if len(r.SubmitterID) > maxTokenLength || len(r.CourseID) > maxTokenLength || len(r.IdempotencyToken) > maxTokenLength {
		return dErrors.New(dErrors.CodeValidation, "identifiers must be at most 128 characters")
	}
	if r.SubmittedAt.IsZero() {
		return dErrors.New(dErrors.CodeValidation, "submitted_at is required")
	}
	if r.Applicant != nil {
		if err := r.Applicant.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// WithdrawRequest asks for a submitter's active registration to be cancelled.
type WithdrawRequest struct {
	CourseID         string    `json:"-"`
	SubmitterID      string    `json:"submitter_id"`
	IdempotencyToken string    `json:"idempotency_token"`
	Reason           string    `json:"reason,omitempty"`
	ActorID          string    `json:"-"`
	RequestedAt      time.Time `json:"-"`
}

func (r *WithdrawRequest) Normalize() {
	r.CourseID = strings.TrimSpace(r.CourseID)
	r.SubmitterID = strings.TrimSpace(r.SubmitterID)
	r.IdempotencyToken = strings.TrimSpace(r.IdempotencyToken)
	r.Reason = strings.TrimSpace(r.Reason)
}

func (r *WithdrawRequest) Validate() error {
	if r.CourseID == "" {
		return dErrors.New(dErrors.CodeValidation, "course_id is required")
	}
	if r.SubmitterID == "" {
		return dErrors.New(dErrors.CodeValidation, "submitter_id is required")
	}
	if r.IdempotencyToken == "" {
		return dErrors.New(dErrors.CodeValidation, "idempotency_token is required")
	}
	if len(r.SubmitterID) > maxTokenLength || len(r.IdempotencyToken) > maxTokenLength {
		return dErrors.New(dErrors.CodeValidation, "identifiers must be at most 128 characters")
	}
	if len(r.Reason) > 512 {
		return dErrors.New(dErrors.CodeValidation, "reason must be at most 512 characters")
	}
	return nil
}
