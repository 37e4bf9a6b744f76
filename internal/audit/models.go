// Package audit records who did what on the administrative surface.
package audit

import "time"

// Actions.
const (
	ActionRegistrationWithdrawn = "registration_withdrawn"
	ActionCatalogRefreshed      = "catalog_refreshed"
	ActionCatalogRefreshFailed  = "catalog_refresh_failed"
	ActionRosterExported        = "roster_exported"
)

// Event is one administrative action. Keep it transport-agnostic so stores
// and sinks can fan out.
type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	Action      string    `json:"action"`
	ActorID     string    `json:"actor_id"`
	ActorRole   string    `json:"actor_role"`
	CourseID    string    `json:"course_id,omitempty"`
	SubmitterID string    `json:"submitter_id,omitempty"`
	Sequence    int64     `json:"sequence,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	RequestID   string    `json:"request_id,omitempty"`
}
