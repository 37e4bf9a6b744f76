package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"registrar/internal/ratelimit"
	"registrar/internal/ratelimit/metrics"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/platform/middleware/metadata"
	"registrar/pkg/requestcontext"
)

type Middleware struct {
	store    ratelimit.Store
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for load tests and demos).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

func New(store ratelimit.Store, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Limit applies policy per client IP. Requires metadata.ClientMetadata earlier in the chain.
// Store failures fail open: a throttle outage must not block registrations.
func (m *Middleware) Limit(policy ratelimit.Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled || policy.Limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := metadata.GetClientIP(ctx)

			result, err := m.store.Allow(ctx, policy.Key(ip), policy.Limit, policy.Window)
			if err != nil {
				m.metrics.IncrementStoreError()
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"policy", policy.Name,
					"request_id", requestcontext.RequestID(ctx),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)
			if !result.Allowed {
				m.metrics.IncrementRejection(policy.Name)
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"policy", policy.Name,
					"client_ip", ip,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeRateLimitExceeded(w, result)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result *ratelimit.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

type rateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

func writeRateLimitExceeded(w http.ResponseWriter, result *ratelimit.Result) {
	seconds := int(result.RetryAfter.Seconds())
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &rateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many submissions from this address. Please try again later.",
		RetryAfter: seconds,
	})
}
