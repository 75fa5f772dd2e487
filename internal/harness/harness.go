package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/routine/internal/engine"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/manifest"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/store"
	"github.com/roach88/routine/internal/testutil"
)

// SettleTimeout bounds how long a single flow step may take to settle.
var SettleTimeout = 5 * time.Second

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Load the CUE manifests and bind every operation to its stub script
//  2. Start the engine with sequential invocation ids
//  3. Dispatch each flow step and wait for the engine to settle
//  4. Read the trace back from the store and replay it
//  5. Evaluate assertions against the final state and trace
//
// Errors are returned for setup problems; assertion failures are reported
// through Result.
func Run(scenario *Scenario) (*Result, error) {
	defs, err := manifest.LoadFiles(scenario.Specs...)
	if err != nil {
		return nil, fmt.Errorf("failed to load specs: %w", err)
	}

	scripts, err := buildScripts(defs, scenario.Stubs)
	if err != nil {
		return nil, err
	}

	bound, err := manifest.Bind(defs, func(def *ir.OperationDef) (routine.Caller, error) {
		return scripts[def.Name].Caller(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind specs: %w", err)
	}

	initial, err := initialState(scenario.InitialState)
	if err != nil {
		return nil, err
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	var (
		fatalMu sync.Mutex
		fatal   []string
	)
	reduce := reducer.New(initial)
	eng := engine.New(reduce, initial,
		engine.WithStore(st),
		engine.WithIDGenerator(testutil.NewSequentialGenerator("inv")),
		engine.WithFatalHandler(func(err error) {
			fatalMu.Lock()
			fatal = append(fatal, err.Error())
			fatalMu.Unlock()
		}),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	flowErr := executeFlow(ctx, eng, bound, scenario.Flow)
	eng.Stop()
	if runErr := <-done; runErr != nil && !errors.Is(runErr, context.Canceled) {
		return nil, fmt.Errorf("engine stopped: %w", runErr)
	}
	if flowErr != nil {
		return nil, flowErr
	}

	result := NewResult()
	final := eng.State()
	result.State = final

	fatalMu.Lock()
	result.Fatal = append(result.Fatal, fatal...)
	fatalMu.Unlock()

	if result.Trace, err = readTrace(ctx, st); err != nil {
		return nil, err
	}

	replayed, err := engine.Replay(ctx, st, reduce, bound.Registry)
	if err != nil {
		result.AddError(fmt.Sprintf("replay failed: %v", err))
	} else if !ir.Equal(replayed, final) {
		result.AddError("replay diverged from live state")
	}

	for _, msg := range EvaluateAssertions(final, result.Trace, scenario.Assertions) {
		result.AddError(msg)
	}

	return result, nil
}

// buildScripts creates one scripted caller per operation. An operation
// without stubs gets an empty script, so calling it is fatal.
func buildScripts(defs []*ir.OperationDef, stubs map[string][]StubOutcome) (map[string]*testutil.ScriptedCaller, error) {
	known := make(map[string]bool, len(defs))
	for _, def := range defs {
		known[def.Name] = true
	}

	names := make([]string, 0, len(stubs))
	for name := range stubs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !known[name] {
			return nil, fmt.Errorf("stub for unknown operation %q", name)
		}
	}

	scripts := make(map[string]*testutil.ScriptedCaller, len(defs))
	for _, def := range defs {
		outcomes := make([]testutil.Outcome, 0, len(stubs[def.Name]))
		for i, stub := range stubs[def.Name] {
			o, err := stub.outcome()
			if err != nil {
				return nil, fmt.Errorf("stubs.%s[%d]: %w", def.Name, i, err)
			}
			outcomes = append(outcomes, o)
		}
		scripts[def.Name] = testutil.NewScriptedCaller(outcomes...)
	}
	return scripts, nil
}

func (o StubOutcome) outcome() (testutil.Outcome, error) {
	switch o.kind {
	case "data":
		v, err := ir.FromAny(o.Data)
		if err != nil {
			return testutil.Outcome{}, err
		}
		return testutil.Succeed(v), nil
	case "error":
		v, err := ir.FromAny(o.Error)
		if err != nil {
			return testutil.Outcome{}, err
		}
		return testutil.Fail(v), nil
	case "fatal":
		return testutil.FailFatal(errors.New(o.Fatal)), nil
	default:
		return testutil.Outcome{}, fmt.Errorf("empty stub outcome")
	}
}

func initialState(raw map[string]any) (ir.Object, error) {
	if raw == nil {
		return ir.Object{}, nil
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return nil, fmt.Errorf("initial_state: %w", err)
	}
	obj, ok := v.(ir.Object)
	if !ok {
		return nil, fmt.Errorf("initial_state: expected object, got %s", ir.TypeName(v))
	}
	return obj, nil
}

// executeFlow dispatches each step and waits for the engine to settle, so
// a step never observes a half-finished lifecycle of the previous one.
func executeFlow(ctx context.Context, eng *engine.Engine, bound *manifest.Bound, flow []FlowStep) error {
	for i, step := range flow {
		var action ir.Action
		if step.Clear != "" {
			path := ir.ParseKeyPath(step.Clear)
			if err := path.Validate(); err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
			action = routine.Clear(path)
		} else {
			op, ok := bound.Lookup(step.Dispatch)
			if !ok {
				return fmt.Errorf("flow[%d]: unknown operation %q", i, step.Dispatch)
			}
			args, err := convertArgs(step.Args)
			if err != nil {
				return fmt.Errorf("flow[%d]: %w", i, err)
			}
			action = op.Invoke(args...)
		}

		if !eng.Dispatch(action) {
			return fmt.Errorf("flow[%d]: engine stopped", i)
		}

		settleCtx, cancel := context.WithTimeout(ctx, SettleTimeout)
		err := eng.Settle(settleCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("flow[%d]: engine did not settle: %w", i, err)
		}
	}
	return nil
}

func convertArgs(args []any) ([]ir.Value, error) {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		v, err := ir.FromAny(a)
		if err != nil {
			return nil, fmt.Errorf("args[%d]: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// readTrace loads every persisted event in seq order.
func readTrace(ctx context.Context, st *store.Store) ([]TraceEvent, error) {
	records, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}

	trace := make([]TraceEvent, 0, len(records))
	for _, rec := range records {
		ev := rec.Event
		te := TraceEvent{
			Seq:        ev.Seq,
			Kind:       ev.Kind.String(),
			Type:       ev.Type,
			Operation:  ev.OperationID,
			Invocation: ev.InvocationID,
			KeyPath:    ev.KeyPath.String(),
			Payload:    ev.Payload,
			Response:   ev.Response,
			Error:      ev.Error,
			Strategy:   rec.StrategyLabel,
		}
		trace = append(trace, te)
	}
	return trace, nil
}
