// Package auth guards the administrative routes with staff bearer tokens.
package auth

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"

	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/httputil"
	"registrar/pkg/requestcontext"
)

// StaffValidator validates a bearer token and returns its claims.
type StaffValidator interface {
	ValidateToken(tokenString string) (*StaffClaims, error)
}

// StaffClaims are the claims the middleware needs from a validated token.
type StaffClaims struct {
	Subject string
	Role    string
}

// RequireStaff authenticates the caller and admits only the listed roles.
// The authenticated principal is available through requestcontext.Staff.
func RequireStaff(validator StaffValidator, logger *slog.Logger, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "invalid or expired token"))
				return
			}

			if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
				logger.WarnContext(ctx, "forbidden - role not permitted",
					"subject", claims.Subject,
					"role", claims.Role,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, "role not permitted for this operation"))
				return
			}

			ctx = requestcontext.WithStaff(ctx, requestcontext.StaffPrincipal{
				Subject: claims.Subject,
				Role:    claims.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
