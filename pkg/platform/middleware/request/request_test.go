package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/pkg/requestcontext"
)

func TestRequestID(t *testing.T) {
	capture := func(id *string) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*id = requestcontext.RequestID(r.Context())
		})
	}

	t.Run("generates UUID when no header provided", func(t *testing.T) {
		var got string
		w := httptest.NewRecorder()
		RequestID(capture(&got)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Len(t, got, 36)
		assert.Equal(t, got, w.Header().Get("X-Request-ID"))
	})

	t.Run("accepts valid client-provided ID", func(t *testing.T) {
		var got string
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Request-ID", "trace.span_1234")
		RequestID(capture(&got)).ServeHTTP(httptest.NewRecorder(), req)

		assert.Equal(t, "trace.span_1234", got)
	})

	t.Run("replaces oversized or unsafe IDs", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("a", MaxRequestIDLength+1), "bad id\nInjected: 1"} {
			var got string
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("X-Request-ID", bad)
			RequestID(capture(&got)).ServeHTTP(httptest.NewRecorder(), req)

			assert.NotEqual(t, bad, got)
			assert.Len(t, got, 36)
		}
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	handler := Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/courses", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, buf.String(), "panic recovered")
}

func TestLogger_UsesRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(Logger(logger))
	r.Get("/courses/{courseID}/status", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses/py-101/status", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "/courses/{courseID}/status", entry["route"])
	assert.EqualValues(t, http.StatusOK, entry["status"])
}
