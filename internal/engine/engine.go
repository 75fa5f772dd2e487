package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/metrics"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/store"
)

// FatalHandler receives errors that end an invocation without a Fail event.
type FatalHandler func(err error)

// Engine is the single-writer event loop that runs operation lifecycles.
//
// CRITICAL: State changes happen only in the Run goroutine.
// External callers use Dispatch to submit actions.
//
// Thread-safety model:
//   - Dispatch, State, Settle, Subscribe: safe from any goroutine
//   - Run: must be called from exactly one goroutine
type Engine struct {
	reduce  reducer.Reducer
	state   atomic.Pointer[ir.Object]
	queue   *actionQueue
	clock   *Clock
	ids     IDGenerator
	store   *store.Store // nil disables persistence
	metrics metrics.Recorder
	fatal   FatalHandler
	bus     *bus

	// pending counts queued actions plus running lifecycles.
	mu      sync.Mutex
	pending int
	waiters []chan struct{}
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore persists invocations and events to st.
func WithStore(st *store.Store) Option {
	return func(e *Engine) { e.store = st }
}

// WithClock replaces the logical clock. Use NewClockAt to continue an
// existing event log.
func WithClock(c *Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithIDGenerator replaces the invocation id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) { e.ids = g }
}

// WithFatalHandler sets the receiver of fatal invocation errors.
// The handler runs on the invocation's goroutine.
func WithFatalHandler(h FatalHandler) Option {
	return func(e *Engine) { e.fatal = h }
}

// WithMetrics records lifecycle metrics on r.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) { e.metrics = r }
}

// New creates an Engine that folds actions with reduce, starting from
// initial. A nil initial state is seeded with the isLoading and error slots.
func New(reduce reducer.Reducer, initial ir.Object, opts ...Option) *Engine {
	e := &Engine{
		reduce:  reduce,
		queue:   newActionQueue(),
		clock:   NewClock(),
		ids:     UUIDv7Generator{},
		metrics: metrics.Nop(),
		fatal:   logFatal,
		bus:     newBus(),
	}
	for _, opt := range opts {
		opt(e)
	}

	start := reducer.InitialState(initial)
	e.state.Store(&start)
	return e
}

// Dispatch submits an action. Invocations start a lifecycle; every other
// action goes through the reducer.
// Returns false if the engine has stopped.
func (e *Engine) Dispatch(a ir.Action) bool {
	if a == nil {
		return false
	}

	e.addPending(1)
	if !e.queue.Enqueue(a) {
		e.addPending(-1)
		return false
	}
	return true
}

// State returns the latest state. The returned tree must not be modified.
func (e *Engine) State() ir.Object {
	return *e.state.Load()
}

// Subscribe registers fn for events of one kind, called after the event is
// applied. It returns a function that removes the subscription.
func (e *Engine) Subscribe(kind ir.Kind, fn EventHandler) func() {
	return e.bus.subscribe(kind, fn)
}

// SubscribeAll registers fn for every processed action together with the
// state after it. It returns a function that removes the subscription.
func (e *Engine) SubscribeAll(fn ActionHandler) func() {
	return e.bus.subscribeAll(fn)
}

// Run processes actions until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
//
// ERROR HANDLING: A reducer or store failure is logged with the action's
// context and processing continues. State is left unchanged by a failed
// reduction.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		action, ok := e.queue.TryDequeue()
		if ok {
			if err := e.process(ctx, action); err != nil {
				logActionError(action, err)
			}
			e.addPending(-1)
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			// The signal channel closes with the queue, so a closed and
			// drained queue ends the loop here.
			if e.queue.Len() == 0 && e.queue.isClosed() {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run drains what is already queued and returns.
// Lifecycles still waiting on their call can no longer dispatch.
func (e *Engine) Stop() {
	e.queue.Close()
}

// Settle blocks until the queue is empty and no lifecycle is running, or
// until ctx is done.
func (e *Engine) Settle(ctx context.Context) error {
	e.mu.Lock()
	if e.pending == 0 {
		e.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	e.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clock returns the engine's logical clock.
func (e *Engine) Clock() *Clock {
	return e.clock
}

// QueueLen returns the number of actions waiting to be processed.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

func (e *Engine) addPending(delta int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.pending += delta
	if e.pending == 0 {
		for _, ch := range e.waiters {
			close(ch)
		}
		e.waiters = nil
	}
}

// process routes one action.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) process(ctx context.Context, action ir.Action) error {
	switch a := action.(type) {
	case routine.Invocation:
		return e.processInvocation(ctx, a)
	case *routine.Invocation:
		if a == nil {
			return fmt.Errorf("nil invocation")
		}
		return e.processInvocation(ctx, *a)
	case ir.Event:
		return e.processEvent(ctx, a)
	case *ir.Event:
		if a == nil {
			return fmt.Errorf("nil event")
		}
		return e.processEvent(ctx, *a)
	default:
		return e.processOther(action)
	}
}

// processInvocation records the invocation and starts its lifecycle.
func (e *Engine) processInvocation(ctx context.Context, inv routine.Invocation) error {
	if inv.Operation == nil {
		return fmt.Errorf("invocation has no operation")
	}

	op := inv.Operation
	rec := store.InvocationRecord{
		ID:          e.ids.Generate(),
		OperationID: op.ID(),
		ActionType:  op.Types().Trigger,
		Payload:     inv.Payload.Clone(),
		Seq:         e.clock.Next(),
	}

	slog.Debug("processing invocation",
		"operation", rec.OperationID,
		"invocation", rec.ID,
		"seq", rec.Seq,
	)

	if e.store != nil {
		if err := e.store.WriteInvocation(ctx, rec); err != nil {
			return &RuntimeError{
				Code:         ErrCodeStoreFailed,
				Message:      "write invocation",
				OperationID:  rec.OperationID,
				InvocationID: rec.ID,
				Err:          err,
			}
		}
	}

	e.bus.publish(inv, e.State())

	e.addPending(1)
	go e.runLifecycle(op, rec.ID, rec.Payload)
	return nil
}

// processEvent stamps, reduces, persists and publishes one event.
func (e *Engine) processEvent(ctx context.Context, ev ir.Event) error {
	ev.Seq = e.clock.Next()

	slog.Debug("processing event",
		"operation", ev.OperationID,
		"invocation", ev.InvocationID,
		"kind", ev.Kind,
		"seq", ev.Seq,
	)

	current := e.State()
	next, err := e.reduce(current, ev)
	if err != nil {
		// The event is still logged so the trace shows what was rejected.
		// Replay rejects it the same way.
		next = current
		err = &RuntimeError{
			Code:         ErrCodeReduceFailed,
			Message:      fmt.Sprintf("reduce %s", ev.Type),
			OperationID:  ev.OperationID,
			InvocationID: ev.InvocationID,
			Err:          err,
		}
	} else {
		e.state.Store(&next)
		e.metrics.EventApplied(ev.Kind.String())
	}

	if e.store != nil {
		if _, werr := e.store.WriteEvent(ctx, ev); werr != nil {
			logActionError(ev, &RuntimeError{
				Code:         ErrCodeStoreFailed,
				Message:      "write event",
				OperationID:  ev.OperationID,
				InvocationID: ev.InvocationID,
				Err:          werr,
			})
		}
	}

	e.bus.publish(ev, next)
	return err
}

// processOther reduces a host action that is not a lifecycle event.
// Such actions are not persisted.
func (e *Engine) processOther(action ir.Action) error {
	current := e.State()
	next, err := e.reduce(current, action)
	if err != nil {
		return &RuntimeError{
			Code:    ErrCodeReduceFailed,
			Message: fmt.Sprintf("reduce %s", action.ActionType()),
			Err:     err,
		}
	}
	e.state.Store(&next)
	e.bus.publish(action, next)
	return nil
}

func logFatal(err error) {
	slog.Error("invocation failed", "error", err)
}

// logActionError logs an action processing failure with full context.
func logActionError(action ir.Action, err error) {
	switch a := action.(type) {
	case ir.Event:
		slog.Error("event processing failed",
			"error", err,
			"type", a.Type,
			"kind", a.Kind,
			"operation", a.OperationID,
			"invocation", a.InvocationID,
			"seq", a.Seq,
		)
	case routine.Invocation:
		operation := ""
		if a.Operation != nil {
			operation = a.Operation.ID()
		}
		slog.Error("invocation processing failed",
			"error", err,
			"operation", operation,
		)
	default:
		slog.Error("action processing failed",
			"error", err,
			"action", fmt.Sprintf("%T", action),
		)
	}
}
