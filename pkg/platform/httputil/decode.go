package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	dErrors "registrar/pkg/domain-errors"
)

// maxBodyBytes bounds request bodies; registration payloads are small.
const maxBodyBytes = 64 << 10

// DecodeJSON decodes a JSON request body into the target type.
// On failure, writes an error response and returns nil, false.
func DecodeJSON[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	var req T
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		logger.WarnContext(ctx, "failed to decode request body",
			"error", err,
			"request_id", requestID,
		)
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	return &req, true
}

// Validatable is implemented by request types that support validation.
type Validatable interface {
	Validate() error
}

// Normalizable is implemented by request types that support normalization.
type Normalizable interface {
	Normalize()
}

// Sanitizable is implemented by request types that support sanitization.
type Sanitizable interface {
	Sanitize()
}

// PrepareRequest sanitizes, normalizes, and validates a request.
func PrepareRequest(req any) error {
	if s, ok := req.(Sanitizable); ok {
		s.Sanitize()
	}
	if n, ok := req.(Normalizable); ok {
		n.Normalize()
	}
	if v, ok := req.(Validatable); ok {
		return v.Validate()
	}
	return nil
}

// DecodeAndPrepare combines JSON decoding with request preparation.
//
// Usage:
//
//	req, ok := httputil.DecodeAndPrepare[models.SubmitRequest](w, r, h.logger, ctx, requestID)
//	if !ok {
//	    return
//	}
func DecodeAndPrepare[T any](w http.ResponseWriter, r *http.Request, logger *slog.Logger, ctx context.Context, requestID string) (*T, bool) {
	req, ok := DecodeJSON[T](w, r, logger, ctx, requestID)
	if !ok {
		return nil, false
	}

	if err := PrepareRequest(req); err != nil {
		logger.WarnContext(ctx, "invalid request",
			"error", err,
			"request_id", requestID,
		)
		var domainErr *dErrors.Error
		if errors.As(err, &domainErr) {
			WriteError(w, err)
		} else {
			WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		}
		return nil, false
	}

	return req, true
}
