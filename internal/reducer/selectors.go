package reducer

import (
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/transform"
)

// IsLoading reports the loading flag of an operation. Operations that never
// issued a Request are not loading.
func IsLoading(state ir.Object, opID string) bool {
	loading, _ := state[ir.LoadingKey].(ir.Object)
	v, _ := loading[opID].(ir.Bool)
	return bool(v)
}

// ErrorAt returns the value recorded in the error sub-tree for a key path.
// Bool(false) means the last Request cleared it.
func ErrorAt(state ir.Object, path ir.KeyPath) (ir.Value, bool) {
	return transform.Get(state, path.Under(ir.ErrorKey))
}

// ValueAt returns the value stored at a key path.
func ValueAt(state ir.Object, path ir.KeyPath) (ir.Value, bool) {
	return transform.Get(state, path)
}
