package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/store"
)

// Replay rebuilds state by folding every persisted event through reduce in
// seq order. Replay uses the same reducer as live execution, so the same log
// always yields the same state.
//
// Custom strategies are not persisted. They are rebound from registry by
// operation id; a missing binding is an ErrCodeUnknownStrategy error.
// Events the reducer rejects are skipped, as they were when first applied.
func Replay(ctx context.Context, st *store.Store, reduce reducer.Reducer, registry *routine.Registry) (ir.Object, error) {
	records, err := st.ReadEvents(ctx, store.EventFilter{})
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}

	state, err := reduce(nil, replayStart{})
	if err != nil {
		return nil, fmt.Errorf("replay: seed state: %w", err)
	}

	for _, rec := range records {
		ev := rec.Event
		if ev.Kind == ir.KindSuccess && ev.Strategy.IsZero() {
			s, err := rebindStrategy(rec, registry)
			if err != nil {
				return nil, err
			}
			ev.Strategy = s
		}

		next, err := reduce(state, ev)
		if err != nil {
			slog.Warn("replay skipped rejected event",
				"error", err,
				"event", rec.ID,
				"operation", ev.OperationID,
				"seq", ev.Seq,
			)
			continue
		}
		state = next
	}

	slog.Debug("replay complete", "events", len(records))
	return state, nil
}

func rebindStrategy(rec store.EventRecord, registry *routine.Registry) (ir.Strategy, error) {
	fail := func(msg string) error {
		return &RuntimeError{
			Code:         ErrCodeUnknownStrategy,
			Message:      msg,
			OperationID:  rec.Event.OperationID,
			InvocationID: rec.Event.InvocationID,
		}
	}

	if registry == nil {
		return ir.Strategy{}, fail(fmt.Sprintf("strategy %q needs a registry", rec.StrategyLabel))
	}
	s, ok := registry.Strategy(rec.Event.OperationID)
	if !ok {
		return ir.Strategy{}, fail(fmt.Sprintf("operation not registered for strategy %q", rec.StrategyLabel))
	}
	if s.String() != rec.StrategyLabel {
		return ir.Strategy{}, fail(fmt.Sprintf("registered strategy %s does not match logged %q", s, rec.StrategyLabel))
	}
	return s, nil
}

// replayStart is a no-op action used to obtain the reducer's seeded state.
type replayStart struct{}

func (replayStart) ActionType() string { return "@@routine/REPLAY" }
