package auth

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"registrar/pkg/requestcontext"
)

type stubValidator map[string]*StaffClaims

func (v stubValidator) ValidateToken(token string) (*StaffClaims, error) {
	if c, ok := v[token]; ok {
		return c, nil
	}
	return nil, errors.New("invalid token")
}

func TestRequireStaff(t *testing.T) {
	validator := stubValidator{
		"admin-token": {Subject: "ops", Role: "admin"},
		"staff-token": {Subject: "desk", Role: "staff"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var seen requestcontext.StaffPrincipal
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestcontext.Staff(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := RequireStaff(validator, logger, "admin")(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"role not permitted", "Bearer staff-token", http.StatusForbidden},
		{"admin allowed", "Bearer admin-token", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/admin/catalog/refresh", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}

	assert.Equal(t, "ops", seen.Subject)
	assert.Equal(t, "admin", seen.Role)
}

func TestRequireStaff_AnyRoleWhenUnrestricted(t *testing.T) {
	validator := stubValidator{"staff-token": {Subject: "desk", Role: "staff"}}
	handler := RequireStaff(validator, slog.New(slog.NewTextHandler(io.Discard, nil)))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }),
	)

	req := httptest.NewRequest(http.MethodGet, "/admin/report", nil)
	req.Header.Set("Authorization", "Bearer staff-token")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}
