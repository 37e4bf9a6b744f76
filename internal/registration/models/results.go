package models

import "time"

// Outcome is the caller-facing verdict on a submission.
type Outcome string

const (
	// OutcomeAccepted: the record is committed and carries a sequence number.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected: a business rule refused the request. Terminal.
	OutcomeRejected Outcome = "rejected"
	// OutcomeContended: the retry budget ran out on version conflicts. Safe to resubmit with the same token.
	OutcomeContended Outcome = "contended"
	// OutcomeFailed: the ledger could not be reached or did not answer in time. Safe to resubmit with the same token.
	OutcomeFailed Outcome = "failed"
)

// Reason explains a rejection.
type Reason string

const (
	ReasonUnknownCourse     Reason = "unknown_course"
	ReasonWindowClosed      Reason = "window_closed"
	ReasonDuplicate         Reason = "duplicate"
	ReasonCapacityExhausted Reason = "capacity_exhausted"
	ReasonIneligible        Reason = "ineligible"
	ReasonNotRegistered     Reason = "not_registered"
)

// Result is the outcome of Submit or Withdraw.
//
// Replayed means the token was already committed before this call started.
// Recovered means this call's own append committed but the store's answer was
// lost, and the record was found again by token; it is still a new commit.
type Result struct {
	Outcome   Outcome `json:"outcome"`
	Reason    Reason  `json:"reason,omitempty"`
	Record    *Record `json:"record,omitempty"`
	Replayed  bool    `json:"replayed,omitempty"`
	Recovered bool    `json:"-"`
	Attempts  int     `json:"attempts"`
}

// Sequence is the committed sequence number, or 0 when nothing was committed.
func (r *Result) Sequence() int64 {
	if r == nil || r.Record == nil {
		return 0
	}
	return r.Record.Sequence
}

// Retryable reports whether the caller may resubmit with the same token.
func (r *Result) Retryable() bool {
	return r.Outcome == OutcomeContended || r.Outcome == OutcomeFailed
}

// CourseStatus is the display view of a course's remaining capacity.
type CourseStatus struct {
	CourseID  string    `json:"course_id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Active    int       `json:"active"`
	Remaining int       `json:"remaining"`
	Open      bool      `json:"open"`
	OpensAt   time.Time `json:"opens_at"`
	ClosesAt  time.Time `json:"closes_at"`
	AsOf      time.Time `json:"as_of"`
}

// HouseholdGroup lists applicants sharing a guardian phone number.
type HouseholdGroup struct {
	GuardianPhone string   `json:"guardian_phone"`
	Applicants    []string `json:"applicants"`
}

// MultiCourseSubmitter lists submitters actively registered in more than one course.
type MultiCourseSubmitter struct {
	SubmitterID string   `json:"submitter_id"`
	Courses     []string `json:"courses"`
}

// Report summarises active registrations across the catalog.
type Report struct {
	GeneratedAt time.Time              `json:"generated_at"`
	PerCourse   map[string]int         `json:"per_course"`
	Households  []HouseholdGroup       `json:"households"`
	MultiCourse []MultiCourseSubmitter `json:"multi_course"`
}
