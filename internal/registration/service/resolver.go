package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	catalogmodels "registrar/internal/catalog/models"
	"registrar/internal/registration/metrics"
	"registrar/internal/registration/models"
	"registrar/internal/registration/store/ledger"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

const (
	defaultRetryBudget  = 5
	defaultBaseBackoff  = 5 * time.Millisecond
	defaultMaxBackoff   = 50 * time.Millisecond
	defaultStoreTimeout = 2 * time.Second
)

// decideFunc applies business rules to a snapshot. It returns either the record
// to append or a terminal rejection reason.
type decideFunc func(snap *models.Snapshot, now time.Time) (*models.Record, models.Reason)

// intent is one logical write the resolver is trying to commit.
type intent struct {
	courseID    string
	submitterID string
	token       string
	kind        models.Kind
	decide      decideFunc
}

// Resolver commits records with optimistic concurrency. No lock is held on the
// ledger while deciding: every append carries the version of the snapshot the
// decision was made on, and a stale version sends the resolver back to re-read
// and re-decide.
//
// Tie-break: when several writers race for the last seat, whichever append the
// ledger accepts first wins and the rest are re-validated against the full course.
// Fairness in submission order is therefore only probabilistic; clients with
// lower latency to the ledger are favoured.
type Resolver struct {
	ledger       ledger.Ledger
	budget       int
	baseBackoff  time.Duration
	maxBackoff   time.Duration
	storeTimeout time.Duration
	now          func() time.Time
	sleep        func(ctx context.Context, d time.Duration) error
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithRetryBudget sets the maximum append attempts per request.
func WithRetryBudget(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.budget = n
		}
	}
}

// WithBackoff sets the exponential backoff bounds between attempts.
func WithBackoff(base, ceiling time.Duration) ResolverOption {
	return func(r *Resolver) {
		if base >= 0 {
			r.baseBackoff = base
		}
		if ceiling >= base {
			r.maxBackoff = ceiling
		}
	}
}

// WithStoreTimeout bounds every individual ledger call.
func WithStoreTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

func withResolverClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) { r.now = now }
}

func withResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) { r.logger = logger }
}

func withResolverMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func withResolverTracer(t trace.Tracer) ResolverOption {
	return func(r *Resolver) { r.tracer = t }
}

// withSleep replaces the backoff sleep. Tests use it to avoid wall-clock waits.
func withSleep(sleep func(ctx context.Context, d time.Duration) error) ResolverOption {
	return func(r *Resolver) { r.sleep = sleep }
}

func NewResolver(l ledger.Ledger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		ledger:       l,
		budget:       defaultRetryBudget,
		baseBackoff:  defaultBaseBackoff,
		maxBackoff:   defaultMaxBackoff,
		storeTimeout: defaultStoreTimeout,
		now:          time.Now,
		sleep:        sleepContext,
		logger:       slog.Default(),
		tracer:       otel.Tracer("registrar/registration"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve commits a registration for req against course, or explains why not.
// The request must already be validated.
func (r *Resolver) Resolve(ctx context.Context, course *catalogmodels.Course, req *models.RegistrationRequest) (*models.Result, error) {
	return r.resolve(ctx, intent{
		courseID:    req.CourseID,
		submitterID: req.SubmitterID,
		token:       req.IdempotencyToken,
		kind:        models.KindRegistration,
		decide:      registrationRule(course, req),
	})
}

// ResolveCancel commits a cancel record superseding the submitter's active registration.
func (r *Resolver) ResolveCancel(ctx context.Context, req *models.WithdrawRequest) (*models.Result, error) {
	return r.resolve(ctx, intent{
		courseID:    req.CourseID,
		submitterID: req.SubmitterID,
		token:       req.IdempotencyToken,
		kind:        models.KindCancel,
		decide:      cancelRule(req),
	})
}

func (r *Resolver) resolve(ctx context.Context, in intent) (*models.Result, error) {
	b := r.newBackOff()
	var last attemptResult

	for n := 1; n <= r.budget; n++ {
		if n > 1 {
			if err := r.sleep(ctx, b.NextBackOff()); err != nil {
				return nil, cancelled(err)
			}
		}

		last = r.attempt(ctx, in, n, n > 1)
		if !last.retry {
			return last.result, last.err
		}
	}

	if errors.Is(last.err, sentinel.ErrConflict) {
		// The course may have filled up while we were losing races; a terminal
		// rejection is more useful to the caller than "try again".
		if res := r.settle(ctx, in); res != nil {
			return res, nil
		}
		r.logger.WarnContext(ctx, "registration_contended",
			"course_id", in.courseID,
			"attempts", r.budget,
		)
		return &models.Result{Outcome: models.OutcomeContended, Attempts: r.budget}, nil
	}

	// The last append may have committed before the store stopped answering.
	if res, err := r.lookupCommitted(ctx, in); res != nil || err != nil {
		return res, err
	}
	r.logger.ErrorContext(ctx, "registration_failed",
		"course_id", in.courseID,
		"attempts", r.budget,
		"error", last.err,
	)
	return &models.Result{Outcome: models.OutcomeFailed, Attempts: r.budget}, nil
}

// lookupCommitted checks the token once after the budget ran out on store
// failures. A nil result and nil error mean nothing was committed, or the
// store still cannot tell.
func (r *Resolver) lookupCommitted(ctx context.Context, in intent) (*models.Result, error) {
	rec, err := r.findToken(ctx, in.token)
	switch {
	case err == nil:
		return committed(in, rec, r.budget)
	case ctx.Err() != nil:
		return nil, cancelled(ctx.Err())
	default:
		return nil, nil
	}
}

// attemptResult is the outcome of one round. When retry is set, err is the
// reason the round did not settle; otherwise result and err are final.
type attemptResult struct {
	result *models.Result
	err    error
	retry  bool
}

func final(res *models.Result, err error) attemptResult {
	return attemptResult{result: res, err: err}
}

func again(err error) attemptResult {
	return attemptResult{err: err, retry: true}
}

// attempt runs one snapshot-decide-append round.
func (r *Resolver) attempt(ctx context.Context, in intent, n int, recheckToken bool) (out attemptResult) {
	ctx, span := r.tracer.Start(ctx, "registration.attempt", trace.WithAttributes(
		attribute.String("course_id", in.courseID),
		attribute.Int("attempt", n),
	))
	defer func() {
		if out.err != nil {
			span.RecordError(out.err)
			if !out.retry {
				span.SetStatus(codes.Error, out.err.Error())
			}
		}
		span.End()
	}()

	// A previous append may have committed even though we saw an error.
	if recheckToken {
		rec, err := r.findToken(ctx, in.token)
		switch {
		case err == nil:
			return final(committed(in, rec, n))
		case errors.Is(err, sentinel.ErrNotFound):
		case ctx.Err() != nil:
			return final(nil, cancelled(ctx.Err()))
		default:
			return again(err)
		}
	}

	snap, err := r.snapshot(ctx, in.courseID)
	if err != nil {
		if ctx.Err() != nil {
			return final(nil, cancelled(ctx.Err()))
		}
		r.logger.ErrorContext(ctx, "registration_failed",
			"course_id", in.courseID,
			"stage", "snapshot",
			"error", err,
		)
		return final(&models.Result{Outcome: models.OutcomeFailed, Attempts: n}, nil)
	}

	// A concurrent request with the same token may have committed since the lookup.
	if rec, ok := snap.FindToken(in.token); ok {
		return final(committed(in, &rec, n))
	}

	record, reason := in.decide(snap, r.now())
	if reason != "" {
		return final(&models.Result{Outcome: models.OutcomeRejected, Reason: reason, Attempts: n}, nil)
	}

	seq, err := r.append(ctx, record, snap.Version)
	switch {
	case err == nil:
		record.Sequence = seq
		span.SetAttributes(attribute.Int64("sequence", seq))
		return final(&models.Result{Outcome: models.OutcomeAccepted, Record: record, Attempts: n}, nil)

	case errors.Is(err, ledger.ErrDuplicateToken):
		rec, findErr := r.findToken(ctx, in.token)
		if findErr == nil {
			return final(committed(in, rec, n))
		}
		if ctx.Err() != nil {
			return final(nil, cancelled(ctx.Err()))
		}
		return again(findErr)

	case errors.Is(err, sentinel.ErrConflict):
		r.metrics.IncrementVersionConflict(in.courseID)
		span.AddEvent("version_conflict")
		return again(err)

	case ctx.Err() != nil:
		return final(nil, cancelled(ctx.Err()))

	default:
		r.logger.WarnContext(ctx, "ledger append failed",
			"course_id", in.courseID,
			"attempt", n,
			"error", err,
		)
		return again(err)
	}
}

// settle re-reads the course once after the budget ran out on conflicts and
// returns a terminal result if one now applies. It never appends.
func (r *Resolver) settle(ctx context.Context, in intent) *models.Result {
	if rec, err := r.findToken(ctx, in.token); err == nil {
		res, mismatch := committed(in, rec, r.budget)
		if mismatch != nil {
			return nil
		}
		return res
	}
	snap, err := r.snapshot(ctx, in.courseID)
	if err != nil {
		return nil
	}
	if rec, ok := snap.FindToken(in.token); ok {
		res, mismatch := committed(in, &rec, r.budget)
		if mismatch != nil {
			return nil
		}
		return res
	}
	if _, reason := in.decide(snap, r.now()); reason != "" {
		return &models.Result{Outcome: models.OutcomeRejected, Reason: reason, Attempts: r.budget}
	}
	return nil
}

// committed turns a record found by the intent's token during resolution into a
// result. The token must belong to the same logical request.
func committed(in intent, rec *models.Record, attempts int) (*models.Result, error) {
	if err := sameRequest(in, rec); err != nil {
		return nil, err
	}
	return &models.Result{Outcome: models.OutcomeAccepted, Record: rec, Recovered: true, Attempts: attempts}, nil
}

func sameRequest(in intent, rec *models.Record) error {
	if rec.CourseID != in.courseID || rec.SubmitterID != in.submitterID || rec.Kind != in.kind {
		return dErrors.New(dErrors.CodeConflict, "idempotency token already used for a different request")
	}
	return nil
}

func (r *Resolver) snapshot(ctx context.Context, courseID string) (*models.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.ledger.Snapshot(ctx, courseID)
}

func (r *Resolver) append(ctx context.Context, record *models.Record, expected models.Version) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.ledger.Append(ctx, record, expected)
}

func (r *Resolver) findToken(ctx context.Context, token string) (*models.Record, error) {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()
	return r.ledger.FindByIdempotencyToken(ctx, token)
}

func (r *Resolver) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.baseBackoff
	b.MaxInterval = r.maxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

// cancelled reports a caller-side cancellation. The server never retries on the
// caller's behalf once its context is done.
func cancelled(err error) error {
	return dErrors.Wrap(err, dErrors.CodeTimeout, "request cancelled before a decision was reached")
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
