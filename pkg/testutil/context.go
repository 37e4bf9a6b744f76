package testutil

import (
	"net/http"
	"time"

	"registrar/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock, as the requesttime
// middleware would, so handlers stamp a known submission time.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}
