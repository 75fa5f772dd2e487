package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/store"
	"github.com/roach88/routine/internal/testutil"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// startEngine runs a fresh engine until the test ends.
func startEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithIDGenerator(testutil.NewSequentialGenerator("inv"))}, opts...)
	e := New(reducer.New(nil), nil, opts...)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = e.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return e
}

func settle(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, e.Settle(ctx))
}

func newOp(t *testing.T, prefix string, caller routine.Caller, keyPath ir.KeyPath, strategy ir.Strategy) *routine.Operation {
	t.Helper()
	op, err := routine.New(routine.Config{
		Prefix:     prefix,
		API:        caller,
		ReducerKey: keyPath,
		Transform:  strategy,
	})
	require.NoError(t, err)
	return op
}

// recorder captures every processed action and the state after it.
type recorder struct {
	actions []ir.Action
	states  []ir.Object
}

func record(e *Engine) *recorder {
	r := &recorder{}
	e.SubscribeAll(func(a ir.Action, s ir.Object) {
		r.actions = append(r.actions, a)
		r.states = append(r.states, s)
	})
	return r
}

// stateAfter returns the state published after the first event of kind.
func (r *recorder) stateAfter(kind ir.Kind) (ir.Object, bool) {
	for i, a := range r.actions {
		if ev, ok := a.(ir.Event); ok && ev.Kind == kind {
			return r.states[i], true
		}
	}
	return nil, false
}

func (r *recorder) kinds() []ir.Kind {
	var out []ir.Kind
	for _, a := range r.actions {
		if ev, ok := a.(ir.Event); ok {
			out = append(out, ev.Kind)
		}
	}
	return out
}
