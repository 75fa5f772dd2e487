// Package routine builds operation descriptors.
//
// An Operation binds an async Caller to a key path in the state tree and a
// merge strategy. Everything derived from the declaration (action types,
// operation id, event shapes) is computed once in New; the Operation is then
// immutable and shared by every invocation.
//
//	op := routine.MustNew(routine.Config{
//		Prefix:     "todos/FETCH",
//		API:        fetchTodos,
//		ReducerKey: ir.KeyPath{"todos"},
//		Transform:  ir.Named(ir.StrategyReplace),
//	})
//	eng.Dispatch(op.Invoke())
package routine
