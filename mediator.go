package brokerauth

import (
	"context"
	"time"
)

// Mediator is the single entry point external callers use: it runs the
// zero-trust gate (authentication, authorization, risk) ahead of the supplied
// business operation and audits the outcome. Stages run strictly in order,
// the first failure short-circuits every later stage except the audit, and
// the audit runs exactly once per invocation whatever the outcome.
//
// Mediator carries no per-request state and is safe for concurrent use.
type Mediator struct {
	authn   *AuthenticationValidator
	authz   *AuthorizationValidator
	risk    *RiskAssessor
	auditor *Auditor
	metrics *Metrics
}

// NewMediator wires the three gate stages, the auditor, and the metrics
// collector. The stages and auditor are required; pass a NoOpSink-backed
// auditor to silence auditing. A nil metrics collector records nothing.
func NewMediator(authn *AuthenticationValidator, authz *AuthorizationValidator, risk *RiskAssessor, auditor *Auditor, metrics *Metrics) *Mediator {
	return &Mediator{authn: authn, authz: authz, risk: risk, auditor: auditor, metrics: metrics}
}

// gate runs the three validation stages, railway style.
func (m *Mediator) gate(ctx context.Context, sctx *SecurityContext) Result[*SecurityContext] {
	return m.authn.Validate(sctx).
		FlatMap(m.authz.Authorize).
		FlatMap(func(c *SecurityContext) Result[*SecurityContext] {
			return m.risk.Assess(ctx, c)
		})
}

// Mediate runs operation under the full pipeline. Operation errors and panics
// are converted to OPERATION_FAILED; they never propagate raw. Mediate is a
// free function because Go methods cannot introduce the result type
// parameter.
func Mediate[T any](ctx context.Context, m *Mediator, sctx *SecurityContext, name string, operation func(context.Context) (T, error)) Result[T] {
	start := time.Now()
	defer func() { m.metrics.Observe(time.Since(start)) }()

	gated := m.gate(ctx, sctx)
	if gated.IsFailure() {
		m.metrics.Inc(metricForDenial(gated.Err().Code))
		m.auditor.LogAccess(ctx, sctx, name, false, gated.Err().Code)
		return Failure[T](gated.Err())
	}

	result := runOperation(ctx, sctx, operation)

	if result.IsFailure() {
		m.metrics.Inc(metricForDenial(result.Err().Code))
		m.auditor.LogAccess(ctx, sctx, name, false, result.Err().Code)
	} else {
		m.metrics.Inc(MetricMediateSuccess)
		m.auditor.LogAccess(ctx, sctx, name, true, "")
	}
	return result
}

// MediateAsync runs Mediate on its own goroutine and delivers the single
// result on the returned channel. The channel is buffered: the result is
// never lost if the caller is slow to receive.
func MediateAsync[T any](ctx context.Context, m *Mediator, sctx *SecurityContext, name string, operation func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		defer close(out)
		out <- Mediate(ctx, m, sctx, name, operation)
	}()
	return out
}

// runOperation executes the business action with panic containment. A panic
// inside an operation must not take down the worker or leak past the
// pipeline's failure contract.
func runOperation[T any](ctx context.Context, sctx *SecurityContext, operation func(context.Context) (T, error)) (result Result[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			result = Failure[T](Errorf(CodeOperationFailed, "operation panic: %v", rec))
		}
	}()

	value, err := operation(ctx)
	if err != nil {
		if code := CodeOf(err); code != CodeSystemError {
			// Taxonomy errors pass through with their original code.
			return Failure[T](&Error{Code: code, Message: err.Error(), Cause: err})
		}
		return Failure[T](WrapError(CodeOperationFailed, err))
	}
	return Success(value, sctx)
}
