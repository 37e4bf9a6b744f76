package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"registrar/internal/registration/models"
	dErrors "registrar/pkg/domain-errors"
	"registrar/pkg/platform/sentinel"
)

// Submit enrolls req.SubmitterID in req.CourseID, or reports why it could not.
//
// Re-submitting a committed idempotency token returns the original acceptance
// with Replayed set and never writes again.
func (e *Engine) Submit(ctx context.Context, req *models.RegistrationRequest) (res *models.Result, err error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "registration request is required")
	}
	start := time.Now()
	defer e.metrics.ObserveSubmit(start)

	ctx, span := e.tracer.Start(ctx, "registration.submit", trace.WithAttributes(
		attribute.String("course_id", req.CourseID),
	))
	defer func() { endSpan(span, res, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	if res, err := e.replay(ctx, req.IdempotencyToken, intent{
		courseID:    req.CourseID,
		submitterID: req.SubmitterID,
		kind:        models.KindRegistration,
	}); res != nil || err != nil {
		return res, err
	}

	course, err := e.catalog.Get(req.CourseID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			res = &models.Result{Outcome: models.OutcomeRejected, Reason: models.ReasonUnknownCourse}
			e.observe(ctx, req.CourseID, res)
			return res, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
	}

	res, err = e.resolver.Resolve(ctx, course, req)
	if err != nil {
		return nil, err
	}
	e.observe(ctx, req.CourseID, res)
	e.committed(ctx, res)
	return res, nil
}

// Withdraw appends a cancel record for the submitter's active registration.
// It is an administrative operation and uses the same optimistic protocol as Submit.
func (e *Engine) Withdraw(ctx context.Context, req *models.WithdrawRequest) (res *models.Result, err error) {
	if req == nil {
		return nil, dErrors.New(dErrors.CodeValidation, "withdraw request is required")
	}
	ctx, span := e.tracer.Start(ctx, "registration.withdraw", trace.WithAttributes(
		attribute.String("course_id", req.CourseID),
	))
	defer func() { endSpan(span, res, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = e.now()
	}

	if res, err := e.replay(ctx, req.IdempotencyToken, intent{
		courseID:    req.CourseID,
		submitterID: req.SubmitterID,
		kind:        models.KindCancel,
	}); res != nil || err != nil {
		return res, err
	}

	if _, err := e.catalog.Get(req.CourseID); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return &models.Result{Outcome: models.OutcomeRejected, Reason: models.ReasonUnknownCourse}, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load course")
	}

	res, err = e.resolver.ResolveCancel(ctx, req)
	if err != nil {
		return nil, err
	}
	e.observe(ctx, req.CourseID, res)
	e.committed(ctx, res)
	if res.Outcome == models.OutcomeAccepted && !res.Replayed {
		e.logger.InfoContext(ctx, "registration_withdrawn",
			"course_id", req.CourseID,
			"submitter_id", req.SubmitterID,
			"actor_id", req.ActorID,
			"cancels_sequence", res.Record.CancelsSequence,
		)
	}
	return res, nil
}

// replay answers from the ledger when the token is already committed. A nil
// result and nil error mean the token is unused (or the lookup failed, in which
// case the append's own token guard still prevents a second record).
func (e *Engine) replay(ctx context.Context, token string, in intent) (*models.Result, error) {
	rec, err := e.resolver.findToken(ctx, token)
	switch {
	case err == nil:
		if err := sameRequest(in, rec); err != nil {
			return nil, err
		}
		res := &models.Result{Outcome: models.OutcomeAccepted, Record: rec, Replayed: true}
		e.metrics.IncrementReplay()
		e.logger.InfoContext(ctx, "registration_replayed",
			"course_id", rec.CourseID,
			"sequence", rec.Sequence,
		)
		return res, nil
	case errors.Is(err, sentinel.ErrNotFound):
		return nil, nil
	case ctx.Err() != nil:
		return nil, cancelled(ctx.Err())
	default:
		e.logger.WarnContext(ctx, "idempotency lookup failed, continuing to resolver",
			"course_id", in.courseID,
			"error", err,
		)
		return nil, nil
	}
}

// observe records metrics and the decision log line.
func (e *Engine) observe(ctx context.Context, courseID string, res *models.Result) {
	e.metrics.IncrementOutcome(string(res.Outcome), string(res.Reason))
	if res.Attempts > 0 {
		e.metrics.ObserveAttempts(res.Attempts)
	}

	switch res.Outcome {
	case models.OutcomeAccepted:
		e.logger.InfoContext(ctx, "registration_accepted",
			"course_id", courseID,
			"sequence", res.Sequence(),
			"attempts", res.Attempts,
			"replayed", res.Replayed,
			"recovered", res.Recovered,
		)
	case models.OutcomeRejected:
		e.logger.InfoContext(ctx, "registration_rejected",
			"course_id", courseID,
			"reason", res.Reason,
			"attempts", res.Attempts,
		)
	}
}

// committed fans out a newly written record: local status cache and event stream.
// Recovered records are new to this call and fan out too; consumers dedupe on
// (course_id, sequence) when a concurrent request with the same token also did.
func (e *Engine) committed(ctx context.Context, res *models.Result) {
	if res.Outcome != models.OutcomeAccepted || res.Replayed || res.Record == nil {
		return
	}
	e.cache.Invalidate(res.Record.CourseID)
	if e.publisher != nil {
		e.publisher.Published(ctx, res.Record)
	}
}

func endSpan(span trace.Span, res *models.Result, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else if res != nil {
		span.SetAttributes(
			attribute.String("outcome", string(res.Outcome)),
			attribute.String("reason", string(res.Reason)),
			attribute.Int("attempts", res.Attempts),
		)
	}
	span.End()
}
