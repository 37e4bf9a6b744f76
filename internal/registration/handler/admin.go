package handler

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/audit"
	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

var rosterColumns = []string{
	"sequence", "submitter_id", "full_name", "age", "level", "phone", "email",
	"guardian_name", "guardian_phone", "submitted_at", "accepted_at",
}

// HandleRoster lists active registrations for a course in sequence order.
func (h *Handler) HandleRoster(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := chi.URLParam(r, "courseID")
	roster, err := h.service.Roster(ctx, courseID)
	if err != nil {
		h.writeServiceError(ctx, w, "roster", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"course_id":     courseID,
		"registrations": roster,
	})
}

// HandleRosterCSV exports the roster as a spreadsheet-friendly attachment.
func (h *Handler) HandleRosterCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID := chi.URLParam(r, "courseID")
	roster, err := h.service.Roster(ctx, courseID)
	if err != nil {
		h.writeServiceError(ctx, w, "roster export", err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", courseID+"-roster.csv"))
	w.WriteHeader(http.StatusOK)

	cw := csv.NewWriter(w)
	_ = cw.Write(rosterColumns)
	for _, rec := range roster {
		_ = cw.Write(rosterRow(rec))
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		h.logger.ErrorContext(ctx, "roster export truncated",
			"error", err,
			"course_id", courseID,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	h.emit(ctx, audit.Event{Action: audit.ActionRosterExported, CourseID: courseID})
}

func rosterRow(rec models.Record) []string {
	row := []string{
		strconv.FormatInt(rec.Sequence, 10),
		rec.SubmitterID,
		"", "", "", "", "", "", "",
		rec.SubmittedAt.UTC().Format(time.RFC3339),
		rec.AcceptedAt.UTC().Format(time.RFC3339),
	}
	if a := rec.Applicant; a != nil {
		row[2] = a.FullName
		row[3] = strconv.Itoa(a.Age)
		row[4] = a.Level
		row[5] = a.Phone
		row[6] = a.Email
		row[7] = a.GuardianName
		row[8] = a.GuardianPhone
	}
	return row
}

// withdrawRequest is the body of an administrative withdrawal.
type withdrawRequest struct {
	SubmitterID      string `json:"submitter_id"`
	IdempotencyToken string `json:"idempotency_token"`
	Reason           string `json:"reason,omitempty"`
}

// HandleWithdraw cancels a submitter's active registration on behalf of staff.
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	staff, ok := requestcontext.Staff(ctx)
	if !ok {
		h.logger.ErrorContext(ctx, "staff principal missing from context despite auth middleware",
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	body, ok := httputil.DecodeJSON[withdrawRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	token, err := idempotencyToken(r, body.IdempotencyToken)
	if err != nil {
		h.writeServiceError(ctx, w, "withdraw", err)
		return
	}

	res, err := h.service.Withdraw(ctx, &models.WithdrawRequest{
		CourseID:         chi.URLParam(r, "courseID"),
		SubmitterID:      body.SubmitterID,
		IdempotencyToken: token,
		Reason:           body.Reason,
		ActorID:          staff.Subject,
		RequestedAt:      requestcontext.Now(ctx),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "withdraw", err)
		return
	}
	if res.Outcome == models.OutcomeAccepted && !res.Replayed && res.Record != nil {
		h.emit(ctx, audit.Event{
			Action:      audit.ActionRegistrationWithdrawn,
			CourseID:    res.Record.CourseID,
			SubmitterID: res.Record.SubmitterID,
			Sequence:    res.Record.Sequence,
			Reason:      body.Reason,
		})
	}
	writeResult(w, res)
}

// HandleCatalogRefresh reloads course definitions without a restart.
func (h *Handler) HandleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := h.catalog.Refresh(ctx); err != nil {
		h.emit(ctx, audit.Event{Action: audit.ActionCatalogRefreshFailed, Reason: err.Error()})
		h.writeServiceError(ctx, w, "catalog refresh", err)
		return
	}
	h.emit(ctx, audit.Event{Action: audit.ActionCatalogRefreshed})
	w.WriteHeader(http.StatusNoContent)
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// HandleAuditLog lists recent administrative actions, newest first.
func (h *Handler) HandleAuditLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit := defaultAuditLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			h.writeServiceError(ctx, w, "audit log", dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxAuditLimit)
	}
	events, err := h.audit.Recent(ctx, limit)
	if err != nil {
		h.writeServiceError(ctx, w, "audit log", err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (h *Handler) HandleReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := h.service.Report(ctx)
	if err != nil {
		h.writeServiceError(ctx, w, "report", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}
