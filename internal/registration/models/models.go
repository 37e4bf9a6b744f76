package models

import "time"

// Kind distinguishes the two record types the ledger holds.
type Kind string

const (
	KindRegistration Kind = "registration"
	KindCancel       Kind = "cancel"
)

// Version is the opaque token a ledger hands out with a snapshot. An append
// carrying a stale Version is refused with a version conflict. Callers only
// pass it back; they never order or do arithmetic on it.
type Version int64

// Record is one committed entry in a course's ledger. Records are never
// updated or deleted; a cancel record supersedes an earlier registration.
type Record struct {
	CourseID         string     `json:"course_id"`
	Sequence         int64      `json:"sequence"`
	Kind             Kind       `json:"kind"`
	SubmitterID      string     `json:"submitter_id"`
	IdempotencyToken string     `json:"idempotency_token"`
	SubmittedAt      time.Time  `json:"submitted_at"`
	AcceptedAt       time.Time  `json:"accepted_at"`
	CancelsSequence  int64      `json:"cancels_sequence,omitempty"`
	Reason           string     `json:"reason,omitempty"`
	ActorID          string     `json:"actor_id,omitempty"`
	Applicant        *Applicant `json:"applicant,omitempty"`
}

// Snapshot is a course's records as of Version, ordered by sequence.
type Snapshot struct {
	CourseID string
	Records  []Record
	Version  Version
}

// Active returns registrations that no cancel record supersedes, in sequence order.
func (s *Snapshot) Active() []Record {
	cancelled := make(map[int64]struct{})
	for _, r := range s.Records {
		if r.Kind == KindCancel {
			cancelled[r.CancelsSequence] = struct{}{}
		}
	}
	active := make([]Record, 0, len(s.Records)-len(cancelled))
	for _, r := range s.Records {
		if r.Kind != KindRegistration {
			continue
		}
		if _, ok := cancelled[r.Sequence]; ok {
			continue
		}
		active = append(active, r)
	}
	return active
}

// ActiveCount is len(Active()) without the allocation. A cancel record only ever
// targets a registration that was active when it was appended, so the difference is exact.
func (s *Snapshot) ActiveCount() int {
	registrations, cancels := 0, 0
	for _, r := range s.Records {
		switch r.Kind {
		case KindRegistration:
			registrations++
		case KindCancel:
			cancels++
		}
	}
	return registrations - cancels
}

// ActiveFor returns the submitter's active registration, if any.
func (s *Snapshot) ActiveFor(submitterID string) (Record, bool) {
	for _, r := range s.Active() {
		if r.SubmitterID == submitterID {
			return r, true
		}
	}
	return Record{}, false
}

// FindToken returns the record committed under an idempotency token, if present.
func (s *Snapshot) FindToken(token string) (Record, bool) {
	for _, r := range s.Records {
		if r.IdempotencyToken == token {
			return r, true
		}
	}
	return Record{}, false
}
