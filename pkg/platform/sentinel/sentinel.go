package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Ledgers, catalog sources and other
// infrastructure layers return these (optionally wrapped) so services can translate
// them into domain errors or outcomes.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: a compare-and-append precondition no longer holds
// - ErrAlreadyUsed: an idempotency token has already been committed
// - ErrUnavailable: service or resource temporarily unavailable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
)
