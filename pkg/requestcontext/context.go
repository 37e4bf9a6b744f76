// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services and ledgers read them without importing net/http.
//
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//	staff, ok := requestcontext.Staff(ctx)
package requestcontext

import (
	"context"
	"time"
)

type (
	requestIDKey   struct{}
	requestTimeKey struct{}
	staffKey       struct{}
)

// Exported context keys for direct use in tests that need context.WithValue.
var (
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyStaff       = staffKey{}
)

// StaffPrincipal is the authenticated administrative caller.
type StaffPrincipal struct {
	Subject string
	Role    string
}

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return v
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request-scoped time, falling back to time.Now when unset.
// All operations within a request observe the same "now".
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok && !t.IsZero() {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// Staff retrieves the authenticated staff principal, if any.
func Staff(ctx context.Context) (StaffPrincipal, bool) {
	p, ok := ctx.Value(ContextKeyStaff).(StaffPrincipal)
	return p, ok
}

// WithStaff injects the authenticated staff principal.
func WithStaff(ctx context.Context, p StaffPrincipal) context.Context {
	return context.WithValue(ctx, ContextKeyStaff, p)
}
