package transform

import (
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// Mutate computes the new value of a slot from its current value.
//
// A nil result is the absent marker: the caller deletes the slot.
// Inputs are never modified; list strategies always return a fresh Array.
func Mutate(strategy ir.Strategy, response, current ir.Value, payload ir.Array) (ir.Value, error) {
	switch strategy.Name() {
	case ir.StrategyReplace:
		return response, nil

	case ir.StrategyClear:
		return nil, nil

	case ir.StrategyAppend:
		return appendValue(response, current)

	case ir.StrategyRemove:
		return ir.Null{}, nil

	case ir.StrategyRemoveByID:
		list, id, err := idOperands(ir.StrategyRemoveByID, response, current)
		if err != nil {
			return nil, err
		}
		out := make(ir.Array, 0, len(list))
		for _, elem := range list {
			if matchesID(elem, id) {
				continue
			}
			out = append(out, elem)
		}
		return out, nil

	case ir.StrategyUpdateByIDAndReplace:
		list, id, err := idOperands(ir.StrategyUpdateByIDAndReplace, response, current)
		if err != nil {
			return nil, err
		}
		out := make(ir.Array, len(list))
		for i, elem := range list {
			if matchesID(elem, id) {
				out[i] = response
				continue
			}
			out[i] = elem
		}
		return out, nil

	case ir.StrategyUpdateByIDAndChange:
		list, id, err := idOperands(ir.StrategyUpdateByIDAndChange, response, current)
		if err != nil {
			return nil, err
		}
		patch := response.(ir.Object)
		out := make(ir.Array, len(list))
		for i, elem := range list {
			if !matchesID(elem, id) {
				out[i] = elem
				continue
			}
			merged := elem.(ir.Object).Clone()
			for k, v := range patch {
				merged[k] = v
			}
			out[i] = merged
		}
		return out, nil

	case ir.StrategyCustom:
		fn := strategy.Func()
		if fn == nil {
			return nil, fmt.Errorf("custom strategy %q has no function", strategy.Label())
		}
		return callCustom(strategy.Label(), fn, response, current, payload)

	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy.Name())
	}
}

// callCustom runs a caller-supplied merge. A panic rejects the event
// instead of unwinding through the engine loop.
func callCustom(label string, fn ir.CustomFunc, response, current ir.Value, payload ir.Array) (v ir.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("custom strategy %q panicked: %v", label, r)
		}
	}()
	return fn(response, current, payload), nil
}

func appendValue(response, current ir.Value) (ir.Value, error) {
	switch cur := current.(type) {
	case nil, ir.Null:
		return ir.Array{response}, nil
	case ir.Array:
		out := make(ir.Array, len(cur), len(cur)+1)
		copy(out, cur)
		return append(out, response), nil
	default:
		return nil, &TypeMismatchError{
			Strategy: ir.StrategyAppend,
			Want:     "array or absent current value",
			Got:      current,
		}
	}
}

// idOperands checks the shared preconditions of the id-keyed strategies and
// returns the list and the response id.
func idOperands(name ir.StrategyName, response, current ir.Value) (ir.Array, ir.Value, error) {
	list, ok := current.(ir.Array)
	if !ok {
		return nil, nil, &TypeMismatchError{
			Strategy: name,
			Want:     "array current value",
			Got:      current,
		}
	}

	obj, ok := response.(ir.Object)
	if !ok {
		return nil, nil, &TypeMismatchError{
			Strategy: name,
			Want:     "object response",
			Got:      response,
		}
	}

	id, ok := obj["id"]
	if !ok || id == nil {
		return nil, nil, &TypeMismatchError{
			Strategy: name,
			Want:     "object response",
			Got:      response,
			Detail:   `response has no "id" field`,
		}
	}

	return list, id, nil
}

// matchesID reports whether elem is an object whose id equals id.
// Elements that are not objects or have no id never match.
func matchesID(elem ir.Value, id ir.Value) bool {
	obj, ok := elem.(ir.Object)
	if !ok {
		return false
	}
	elemID, ok := obj["id"]
	if !ok {
		return false
	}
	return ir.Equal(elemID, id)
}
