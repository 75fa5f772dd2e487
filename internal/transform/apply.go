package transform

import (
	"errors"
	"fmt"

	"github.com/roach88/routine/internal/ir"
)

// Apply writes Mutate(strategy, response, state[path], payload) at path and
// returns the new state. state is never modified.
//
// Unless the strategy is clear, the path is rooted at "error", or opID is
// empty, Apply also sets isLoading[opID] to false. Error writes and explicit
// clears never touch loading flags.
//
// Absent or null objects along the path are created empty. A non-object
// value along the path is a *TypeMismatchError.
func Apply(state ir.Object, path ir.KeyPath, strategy ir.Strategy, opID string, response ir.Value, payload ir.Array) (ir.Object, error) {
	if len(path) == 0 {
		return nil, ir.ErrEmptyKeyPath
	}
	if err := strategy.Validate(); err != nil {
		return nil, fmt.Errorf("apply %q: %w", path.String(), err)
	}
	if state == nil {
		state = ir.Object{}
	}

	next, err := setIn(state, path, 0, func(current ir.Value) (ir.Value, error) {
		return Mutate(strategy, response, current, payload)
	})
	if err != nil {
		var tm *TypeMismatchError
		if errors.As(err, &tm) && tm.Path == nil {
			tm.Path = path.Clone()
		}
		return nil, err
	}

	if strategy.Is(ir.StrategyClear) || path[0] == ir.ErrorKey || opID == "" {
		return next, nil
	}
	// next is a fresh copy owned here.
	next[ir.LoadingKey] = loadingWith(next, opID, false)
	return next, nil
}
