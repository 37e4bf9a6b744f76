// Package handler exposes the registration engine over HTTP.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"registrar/internal/audit"
	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	authmw "registrar/pkg/platform/middleware/auth"
	"registrar/pkg/requestcontext"
)

// Staff roles admitted on the administrative routes.
const (
	roleAdmin = "admin"
	roleStaff = "staff"
)

// IdempotencyHeader carries the idempotency token when the body omits it.
const IdempotencyHeader = "Idempotency-Key"

// retryAfter is advertised on contended and failed submissions.
const retryAfter = time.Second

// Service defines the registration operations the handler needs.
type Service interface {
	Submit(ctx context.Context, req *models.RegistrationRequest) (*models.Result, error)
	Withdraw(ctx context.Context, req *models.WithdrawRequest) (*models.Result, error)
	Status(ctx context.Context, courseID string) (*models.CourseStatus, error)
	ListStatuses(ctx context.Context) ([]*models.CourseStatus, error)
	Roster(ctx context.Context, courseID string) ([]models.Record, error)
	Report(ctx context.Context) (*models.Report, error)
}

// CatalogRefresher reloads course definitions on demand.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

// AuditLog records administrative actions and lists them back.
type AuditLog interface {
	Emit(ctx context.Context, event audit.Event)
	Recent(ctx context.Context, limit int) ([]audit.Event, error)
}

// Handler handles registration, status, and administrative endpoints.
type Handler struct {
	service   Service
	catalog   CatalogRefresher
	validator authmw.StaffValidator
	logger    *slog.Logger
	submitMW  []func(http.Handler) http.Handler
	audit     AuditLog
}

type Option func(*Handler)

// WithSubmitMiddleware wraps POST /registrations only, e.g. with a per-client rate limit.
func WithSubmitMiddleware(mw ...func(http.Handler) http.Handler) Option {
	return func(h *Handler) {
		h.submitMW = append(h.submitMW, mw...)
	}
}

// WithAuditLog records withdrawals, catalog refreshes, and roster exports.
// It also enables GET /admin/audit.
func WithAuditLog(log AuditLog) Option {
	return func(h *Handler) {
		h.audit = log
	}
}

// New creates a new registration Handler.
func New(service Service, catalog CatalogRefresher, validator authmw.StaffValidator, logger *slog.Logger, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		catalog:   catalog,
		validator: validator,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the public and administrative routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.With(h.submitMW...).Post("/registrations", h.HandleSubmit)
	r.Get("/courses", h.HandleListStatuses)
	r.Get("/courses/{courseID}/status", h.HandleStatus)

	r.Route("/admin", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireStaff(h.validator, h.logger, roleAdmin, roleStaff))
			r.Get("/courses/{courseID}/roster", h.HandleRoster)
			r.Get("/courses/{courseID}/roster.csv", h.HandleRosterCSV)
			r.Get("/report", h.HandleReport)
		})
		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireStaff(h.validator, h.logger, roleAdmin))
			r.Post("/courses/{courseID}/withdrawals", h.HandleWithdraw)
			r.Post("/catalog/refresh", h.HandleCatalogRefresh)
			if h.audit != nil {
				r.Get("/audit", h.HandleAuditLog)
			}
		})
	})
}

// resultResponse is the body returned for a decided submission or withdrawal.
type resultResponse struct {
	Outcome     models.Outcome `json:"outcome"`
	Reason      models.Reason  `json:"reason,omitempty"`
	Error       string         `json:"error,omitempty"`
	CourseID    string         `json:"course_id,omitempty"`
	SubmitterID string         `json:"submitter_id,omitempty"`
	Sequence    int64          `json:"sequence,omitempty"`
	AcceptedAt  *time.Time     `json:"accepted_at,omitempty"`
	Replayed    bool           `json:"replayed,omitempty"`
	Attempts    int            `json:"attempts"`
}

// writeResult maps an engine verdict to a status code.
// Rejections carry the reason so clients can tell capacity from duplicates.
func writeResult(w http.ResponseWriter, res *models.Result) {
	body := resultResponse{
		Outcome:  res.Outcome,
		Reason:   res.Reason,
		Replayed: res.Replayed,
		Attempts: res.Attempts,
	}
	if rec := res.Record; rec != nil {
		body.CourseID = rec.CourseID
		body.SubmitterID = rec.SubmitterID
		body.Sequence = rec.Sequence
		acceptedAt := rec.AcceptedAt
		body.AcceptedAt = &acceptedAt
	}

	switch res.Outcome {
	case models.OutcomeAccepted:
		status := http.StatusCreated
		if res.Replayed {
			status = http.StatusOK
		}
		httputil.WriteJSON(w, status, body)
	case models.OutcomeRejected:
		status := http.StatusConflict
		body.Error = "conflict"
		if res.Reason == models.ReasonUnknownCourse || res.Reason == models.ReasonNotRegistered {
			status = http.StatusNotFound
			body.Error = "not_found"
		}
		httputil.WriteJSON(w, status, body)
	default:
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter/time.Second)))
		body.Error = "unavailable"
		httputil.WriteJSON(w, http.StatusServiceUnavailable, body)
	}
}

// idempotencyToken reconciles the header and body tokens. Supplying two different tokens is a client error.
func idempotencyToken(r *http.Request, bodyToken string) (string, error) {
	header := r.Header.Get(IdempotencyHeader)
	switch {
	case header == "":
		return bodyToken, nil
	case bodyToken == "" || bodyToken == header:
		return header, nil
	default:
		return "", dErrors.New(dErrors.CodeBadRequest, "Idempotency-Key header does not match idempotency_token")
	}
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	requestID := requestcontext.RequestID(ctx)
	switch {
	case dErrors.HasCode(err, dErrors.CodeValidation), dErrors.HasCode(err, dErrors.CodeBadRequest),
		dErrors.HasCode(err, dErrors.CodeNotFound), dErrors.HasCode(err, dErrors.CodeConflict):
		h.logger.WarnContext(ctx, op+" rejected",
			"error", err,
			"request_id", requestID,
		)
	default:
		h.logger.ErrorContext(ctx, op+" failed",
			"error", err,
			"request_id", requestID,
		)
	}
	httputil.WriteError(w, err)
}

func (h *Handler) emit(ctx context.Context, event audit.Event) {
	if h.audit == nil {
		return
	}
	h.audit.Emit(ctx, event)
}
