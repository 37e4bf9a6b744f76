package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(h *Handler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	h.Register(r)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestLiveness(t *testing.T) {
	w := serve(New("test"), "/health/live")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadiness(t *testing.T) {
	t.Run("ready when all checks pass", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("ledger", func(context.Context) error { return nil })

		w := serve(h, "/health/ready")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("not ready when a check fails", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("ledger", func(context.Context) error { return nil })
		h.RegisterCheck("redis", func(context.Context) error { return errors.New("connection refused") })

		w := serve(h, "/health/ready")
		require.Equal(t, http.StatusServiceUnavailable, w.Code)

		var body ReadinessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "not_ready", body.Status)
		assert.Equal(t, "up", body.Checks["ledger"])
		assert.Equal(t, "down: connection refused", body.Checks["redis"])
	})

	t.Run("checks receive a bounded context", func(t *testing.T) {
		h := New("test")
		h.RegisterCheck("slow", func(ctx context.Context) error {
			_, ok := ctx.Deadline()
			if !ok {
				return errors.New("no deadline")
			}
			return nil
		})

		assert.Equal(t, http.StatusOK, serve(h, "/health/ready").Code)
	})
}

func TestStatus(t *testing.T) {
	w := serve(New("staging"), "/health")
	require.Equal(t, http.StatusOK, w.Code)

	var body StatusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "staging", body.Environment)
	assert.Equal(t, Version, body.Version)
}
