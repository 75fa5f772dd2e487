// Package reducer folds lifecycle events into the application state tree.
package reducer

import (
	"fmt"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/transform"
)

// Reducer is the fold function handed to the host: (state, action) -> state.
type Reducer func(state ir.Object, action ir.Action) (ir.Object, error)

// InitialState returns seed (or an empty object) with the isLoading and
// error slots guaranteed. seed is not modified.
func InitialState(seed ir.Object) ir.Object {
	_, hasLoading := seed[ir.LoadingKey].(ir.Object)
	_, hasError := seed[ir.ErrorKey].(ir.Object)
	if hasLoading && hasError {
		return seed
	}

	out := seed.Clone()
	if !hasLoading {
		out[ir.LoadingKey] = ir.Object{}
	}
	if !hasError {
		out[ir.ErrorKey] = ir.Object{}
	}
	return out
}

// New returns a Reducer that substitutes InitialState(initial) for a nil
// state.
func New(initial ir.Object) Reducer {
	seeded := InitialState(initial)
	return func(state ir.Object, action ir.Action) (ir.Object, error) {
		if state == nil {
			state = seeded
		}
		return Reduce(state, action)
	}
}

// Reduce applies one action. Only lifecycle events change state; Trigger
// events and every other action return state itself.
//
// A *transform.TypeMismatchError leaves the caller's state untouched: the
// returned error is the only outcome.
func Reduce(state ir.Object, action ir.Action) (ir.Object, error) {
	ev, ok := asEvent(action)
	if !ok {
		return state, nil
	}

	switch ev.Kind {
	case ir.KindClear:
		return transform.Apply(state, ev.KeyPath, ir.Named(ir.StrategyClear), "", nil, nil)

	case ir.KindRequest:
		next := transform.SetLoading(state, ev.OperationID, true)
		return transform.Apply(next, ev.KeyPath.Under(ir.ErrorKey), ir.Named(ir.StrategyReplace), ev.OperationID, ir.Bool(false), nil)

	case ir.KindSuccess:
		strategy := ev.Strategy
		if strategy.IsZero() {
			return nil, fmt.Errorf("success event %q has no strategy", ev.Type)
		}
		return transform.Apply(state, ev.KeyPath, strategy, ev.OperationID, ev.Response, ev.Payload)

	case ir.KindFail:
		next := transform.SetLoading(state, ev.OperationID, false)
		errValue := ev.Error
		if errValue == nil {
			errValue = ir.Null{}
		}
		return transform.Apply(next, ev.KeyPath.Under(ir.ErrorKey), ir.Named(ir.StrategyReplace), ev.OperationID, errValue, nil)

	default:
		return state, nil
	}
}

func asEvent(action ir.Action) (ir.Event, bool) {
	switch a := action.(type) {
	case ir.Event:
		return a, true
	case *ir.Event:
		if a == nil {
			return ir.Event{}, false
		}
		return *a, true
	default:
		return ir.Event{}, false
	}
}
