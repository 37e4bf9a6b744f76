package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"registrar/pkg/requestcontext"
)

func TestMiddleware_TimeIsConsistentWithinRequest(t *testing.T) {
	var firstRead, secondRead time.Time
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		firstRead = requestcontext.Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		secondRead = requestcontext.Now(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/courses", nil))

	assert.False(t, firstRead.IsZero())
	assert.Equal(t, firstRead, secondRead)
}

func TestMiddlewareWithClock_UsesInjectedClock(t *testing.T) {
	fixed := time.Date(2026, 9, 1, 8, 30, 0, 0, time.UTC)
	var captured time.Time
	handler := MiddlewareWithClock(func() time.Time { return fixed })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			captured = requestcontext.Now(r.Context())
		}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/registrations", nil))

	assert.Equal(t, fixed, captured)
}

func TestNow_FallbackToRealTime(t *testing.T) {
	before := time.Now()
	got := requestcontext.Now(context.Background())
	assert.False(t, got.Before(before))
}
