package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"registrar/internal/ratelimit"
	"registrar/internal/ratelimit/store"
	"registrar/pkg/platform/middleware/metadata"
)

type failingStore struct{}

func (failingStore) Allow(context.Context, string, int, time.Duration) (*ratelimit.Result, error) {
	return nil, errors.New("redis: connection refused")
}

var submitPolicy = ratelimit.Policy{Name: "submit", Limit: 2, Window: time.Minute}

func newChain(s ratelimit.Store, opts ...Option) http.Handler {
	m := New(s, slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusCreated) })
	return metadata.ClientMetadata(nil)(m.Limit(submitPolicy)(ok))
}

func post(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/registrations", nil)
	req.RemoteAddr = ip + ":51234"
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestLimit_RefusesOverBudgetPerClient(t *testing.T) {
	h := newChain(store.NewMemory())

	rr := post(h, "203.0.113.9")
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "2", rr.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rr.Header().Get("X-RateLimit-Remaining"))

	require.Equal(t, http.StatusCreated, post(h, "203.0.113.9").Code)

	rr = post(h, "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("Retry-After"))
	assert.Contains(t, rr.Body.String(), "rate_limit_exceeded")

	assert.Equal(t, http.StatusCreated, post(h, "203.0.113.10").Code, "another client has its own window")
}

func TestLimit_FailsOpenOnStoreError(t *testing.T) {
	h := newChain(failingStore{})
	for range 5 {
		assert.Equal(t, http.StatusCreated, post(h, "203.0.113.9").Code)
	}
}

func TestLimit_Disabled(t *testing.T) {
	h := newChain(store.NewMemory(), WithDisabled(true))
	for range 5 {
		assert.Equal(t, http.StatusCreated, post(h, "203.0.113.9").Code)
	}
}

func TestLimit_ForwardedHeaderDoesNotResetBudget(t *testing.T) {
	h := newChain(store.NewMemory())
	spoofed := func(forwarded string) int {
		req := httptest.NewRequest(http.MethodPost, "/registrations", nil)
		req.RemoteAddr = "203.0.113.9:51234"
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	require.Equal(t, http.StatusCreated, spoofed("198.51.100.1"))
	require.Equal(t, http.StatusCreated, spoofed("198.51.100.2"))
	assert.Equal(t, http.StatusTooManyRequests, spoofed("198.51.100.3"))
}
