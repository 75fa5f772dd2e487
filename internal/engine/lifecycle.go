package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/metrics"
	"github.com/roach88/routine/internal/routine"
)

// htmlMarker identifies an HTML error page in a failure body. Such bodies
// are recorded as false instead of the page text.
const htmlMarker = "!doctype html"

// ErrCallPanicked wraps a panic raised by an operation's call. It reaches
// the fatal handler inside a *FatalTransportError.
var ErrCallPanicked = errors.New("call panicked")

// runLifecycle drives one invocation: Trigger, Request, one call, then
// Success or Fail. It runs on its own goroutine and touches state only
// through Dispatch.
func (e *Engine) runLifecycle(op *routine.Operation, invocationID string, payload ir.Array) {
	defer e.addPending(-1)

	m := &phaseMachine{operationID: op.ID(), invocationID: invocationID}
	started := time.Now()
	e.metrics.InvocationStarted(op.ID())

	emit := func(next Phase, ev ir.Event) bool {
		if err := m.advance(next); err != nil {
			slog.Error("lifecycle aborted", "error", err)
			return false
		}
		ev.InvocationID = invocationID
		return e.Dispatch(ev)
	}
	finish := func(outcome string) {
		e.metrics.InvocationFinished(op.ID(), outcome, time.Since(started))
	}

	if !emit(PhaseTriggered, op.TriggerEvent(payload)) {
		finish(metrics.OutcomeFatal)
		return
	}
	if !emit(PhaseRequesting, op.RequestEvent(payload)) {
		finish(metrics.OutcomeFatal)
		return
	}

	// The call outlives engine cancellation: once started it settles.
	resp, err := callOnce(context.WithoutCancel(context.Background()), op, payload)

	if err == nil {
		var data ir.Value = ir.Null{}
		if resp != nil && resp.Data != nil {
			data = resp.Data
		}
		emit(PhaseSucceeded, op.SuccessEvent(data, payload))
		if next, ok := op.SuccessFollowUp(payload); ok {
			e.Dispatch(next)
		}
		finish(metrics.OutcomeSuccess)
		return
	}

	if re, ok := routine.AsResponseError(err); ok {
		emit(PhaseFailed, op.FailEvent(normalizeFailure(re.Response.Data)))
		if next, ok := op.FailFollowUp(); ok {
			e.Dispatch(next)
		}
		finish(metrics.OutcomeFail)
		return
	}

	// No response body: the loading flag stays set and no Fail is emitted.
	finish(metrics.OutcomeFatal)
	e.fatal(&FatalTransportError{
		OperationID:  op.ID(),
		InvocationID: invocationID,
		Err:          err,
	})
}

// callOnce runs the operation's call, converting a panic into an error.
func callOnce(ctx context.Context, op *routine.Operation, payload ir.Array) (resp *routine.Response, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrCallPanicked, r)
		}
	}()
	return op.Call(ctx, payload...)
}

// normalizeFailure maps a failure body to the value stored under error.
func normalizeFailure(data ir.Value) ir.Value {
	if s, ok := data.(ir.String); ok && strings.Contains(strings.ToLower(string(s)), htmlMarker) {
		return ir.Bool(false)
	}
	if data == nil {
		return ir.Null{}
	}
	return data
}
