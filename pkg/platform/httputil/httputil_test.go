package httputil

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/testutil"
)

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{
			name:   "internal error hides its message",
			err:    dErrors.New(dErrors.CodeInternal, "ledger row corrupt"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
		{
			name:        "validation error explains itself",
			err:         dErrors.New(dErrors.CodeValidation, "age is required"),
			status:      http.StatusBadRequest,
			code:        "validation_error",
			description: "age is required",
		},
		{
			name:        "wrapped unavailable keeps its code",
			err:         fmt.Errorf("submit: %w", dErrors.New(dErrors.CodeUnavailable, "registration ledger unavailable")),
			status:      http.StatusServiceUnavailable,
			code:        "unavailable",
			description: "registration ledger unavailable",
		},
		{
			name:   "plain error is internal",
			err:    errors.New("connection reset"),
			status: http.StatusInternalServerError,
			code:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			testutil.AssertStatus(t, w, tt.status)
			testutil.AssertContentType(t, w, "application/json")
			body := testutil.UnmarshalErrorResponse(t, w)
			assert.Equal(t, tt.code, body["error"])
			if tt.description == "" {
				assert.NotContains(t, body, "error_description")
			} else {
				assert.Equal(t, tt.description, body["error_description"])
			}
		})
	}
}
