package routine

import (
	"github.com/roach88/routine/internal/ir"
)

// TriggerEvent builds the Trigger event of an invocation.
func (o *Operation) TriggerEvent(payload ir.Array) ir.Event {
	return ir.Event{
		Kind:        ir.KindTrigger,
		Type:        o.types.Trigger,
		OperationID: o.id,
		KeyPath:     o.KeyPath(),
		Payload:     payload,
	}
}

// RequestEvent builds the Request event of an invocation.
func (o *Operation) RequestEvent(payload ir.Array) ir.Event {
	return ir.Event{
		Kind:        ir.KindRequest,
		Type:        o.types.Request,
		OperationID: o.id,
		KeyPath:     o.KeyPath(),
		Payload:     payload,
	}
}

// SuccessEvent builds the Success event carrying the response body.
func (o *Operation) SuccessEvent(response ir.Value, payload ir.Array) ir.Event {
	return ir.Event{
		Kind:        ir.KindSuccess,
		Type:        o.types.Success,
		OperationID: o.id,
		KeyPath:     o.KeyPath(),
		Payload:     payload,
		Response:    response,
		Strategy:    o.strategy,
	}
}

// FailEvent builds the Fail event carrying the normalized error.
func (o *Operation) FailEvent(errValue ir.Value) ir.Event {
	return ir.Event{
		Kind:        ir.KindFail,
		Type:        o.types.Fail,
		OperationID: o.id,
		KeyPath:     o.KeyPath(),
		Error:       errValue,
	}
}
