package transform

import (
	"github.com/roach88/routine/internal/ir"
)

// Get resolves a key path against a state tree. It reports false when any
// segment is missing or an intermediate value is not an object.
func Get(state ir.Object, path ir.KeyPath) (ir.Value, bool) {
	if len(path) == 0 {
		return nil, false
	}

	var cur ir.Value = state
	for _, seg := range path {
		obj, ok := cur.(ir.Object)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setIn returns a copy of obj with path[i:] rewritten so that the value at
// the final segment is produced by leaf. Objects on the path are copied,
// everything else is shared. A nil result from leaf deletes the key.
//
// Inside the error sub-tree a non-object intermediate (usually the false
// "no error" sentinel written for a shorter key path) is replaced by an empty
// object. Anywhere else it is a type mismatch.
func setIn(obj ir.Object, path ir.KeyPath, i int, leaf func(current ir.Value) (ir.Value, error)) (ir.Object, error) {
	seg := path[i]
	out := obj.Clone()

	if i == len(path)-1 {
		current, _ := obj.Get(seg)
		next, err := leaf(current)
		if err != nil {
			return nil, err
		}
		if next == nil {
			delete(out, seg)
		} else {
			out[seg] = next
		}
		return out, nil
	}

	var child ir.Object
	switch v := obj[seg].(type) {
	case nil, ir.Null:
		child = ir.Object{}
	case ir.Object:
		child = v
	default:
		if path[0] != ir.ErrorKey {
			return nil, mismatchAt(path, i, v)
		}
		child = ir.Object{}
	}

	next, err := setIn(child, path, i+1, leaf)
	if err != nil {
		return nil, err
	}
	out[seg] = next
	return out, nil
}

func mismatchAt(path ir.KeyPath, i int, got ir.Value) error {
	return &TypeMismatchError{
		Path:   path[:i+1].Clone(),
		Want:   "object",
		Got:    got,
		Detail: "cannot descend into non-object",
	}
}

// loadingWith returns a copy of the isLoading map in state with opID set.
func loadingWith(state ir.Object, opID string, v bool) ir.Object {
	loading, _ := state[ir.LoadingKey].(ir.Object)
	next := loading.Clone()
	next[opID] = ir.Bool(v)
	return next
}

// SetLoading returns a copy of state with isLoading[opID] set to v.
// Only the top level and the isLoading map are copied.
func SetLoading(state ir.Object, opID string, v bool) ir.Object {
	out := state.Clone()
	out[ir.LoadingKey] = loadingWith(state, opID, v)
	return out
}
