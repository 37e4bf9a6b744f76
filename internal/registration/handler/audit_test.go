package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/mock/gomock"

	"registrar/internal/audit"
	"registrar/pkg/testutil"
)

type recordingAuditLog struct {
	events []audit.Event
	err    error
}

func (l *recordingAuditLog) Emit(_ context.Context, e audit.Event) {
	l.events = append(l.events, e)
}

func (l *recordingAuditLog) Recent(_ context.Context, limit int) ([]audit.Event, error) {
	if l.err != nil {
		return nil, l.err
	}
	if limit < len(l.events) {
		return l.events[:limit], nil
	}
	return l.events, nil
}

func (s *HandlerSuite) auditedRouter(log *recordingAuditLog) chi.Router {
	validator := stubValidator{
		"admin-token": {Subject: "ops@school.example", Role: "admin"},
		"staff-token": {Subject: "desk@school.example", Role: "staff"},
	}
	h := New(s.service, s.catalog, validator, slog.New(slog.NewTextHandler(io.Discard, nil)), WithAuditLog(log))
	r := chi.NewRouter()
	h.Register(r)
	return r
}

// =============================================================================
// Audit trail
// =============================================================================

func (s *HandlerSuite) TestAuditTrail() {
	s.Run("withdrawal is recorded with the cancelled registration", func() {
		log := &recordingAuditLog{}
		router := s.auditedRouter(log)
		s.service.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(accepted("c-math", "stu-1", 7, false), nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/courses/c-math/withdrawals", map[string]any{
			"submitter_id":      "stu-1",
			"idempotency_token": "wd-1",
			"reason":            "moved away",
		}), "admin-token")
		rr := testutil.DoRequest(router, testutil.WithRequestTime(req, requestTime))

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.Require().Len(log.events, 1)
		s.Equal(audit.ActionRegistrationWithdrawn, log.events[0].Action)
		s.Equal("stu-1", log.events[0].SubmitterID)
		s.Equal(int64(7), log.events[0].Sequence)
		s.Equal("moved away", log.events[0].Reason)
	})

	s.Run("recovered withdrawal is recorded", func() {
		log := &recordingAuditLog{}
		router := s.auditedRouter(log)
		res := accepted("c-math", "stu-1", 8, false)
		res.Recovered = true
		s.service.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(res, nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/courses/c-math/withdrawals", map[string]any{
			"submitter_id":      "stu-1",
			"idempotency_token": "wd-2",
		}), "admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusCreated)
		s.Require().Len(log.events, 1)
		s.Equal(int64(8), log.events[0].Sequence)
	})

	s.Run("replayed withdrawal is not recorded twice", func() {
		log := &recordingAuditLog{}
		router := s.auditedRouter(log)
		s.service.EXPECT().Withdraw(gomock.Any(), gomock.Any()).Return(accepted("c-math", "stu-1", 7, true), nil)

		req := s.authed(testutil.NewJSONRequest(s.T(), http.MethodPost, "/admin/courses/c-math/withdrawals", map[string]any{
			"submitter_id":      "stu-1",
			"idempotency_token": "wd-1",
		}), "admin-token")
		rr := testutil.DoRequest(router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Empty(log.events)
	})

	s.Run("catalog refresh outcome is recorded", func() {
		log := &recordingAuditLog{}
		router := s.auditedRouter(log)
		s.catalog.EXPECT().Refresh(gomock.Any()).Return(nil)
		s.catalog.EXPECT().Refresh(gomock.Any()).Return(errors.New("source unreachable"))

		rr := testutil.DoRequest(router, s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/admin/catalog/refresh"), "admin-token"))
		testutil.AssertStatus(s.T(), rr, http.StatusNoContent)
		rr = testutil.DoRequest(router, s.authed(testutil.NewRequest(s.T(), http.MethodPost, "/admin/catalog/refresh"), "admin-token"))
		testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)

		s.Require().Len(log.events, 2)
		s.Equal(audit.ActionCatalogRefreshed, log.events[0].Action)
		s.Equal(audit.ActionCatalogRefreshFailed, log.events[1].Action)
		s.Contains(log.events[1].Reason, "source unreachable")
	})

	s.Run("audit listing is admin only", func() {
		router := s.auditedRouter(&recordingAuditLog{})
		rr := testutil.DoRequest(router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit"), "staff-token"))
		testutil.AssertStatus(s.T(), rr, http.StatusForbidden)
	})

	s.Run("audit listing returns recent events", func() {
		log := &recordingAuditLog{events: []audit.Event{
			{ID: "e1", Action: audit.ActionCatalogRefreshed},
			{ID: "e2", Action: audit.ActionRosterExported},
		}}
		router := s.auditedRouter(log)
		rr := testutil.DoRequest(router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?limit=1"), "admin-token"))

		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		body := testutil.UnmarshalResponse[struct {
			Events []audit.Event `json:"events"`
		}](s.T(), rr)
		s.Require().Len(body.Events, 1)
		s.Equal("e1", body.Events[0].ID)
	})

	s.Run("invalid limit is a bad request", func() {
		router := s.auditedRouter(&recordingAuditLog{})
		rr := testutil.DoRequest(router, s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit?limit=abc"), "admin-token"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})

	s.Run("route is absent without an audit log", func() {
		rr := s.do(s.authed(testutil.NewRequest(s.T(), http.MethodGet, "/admin/audit"), "admin-token"))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}
