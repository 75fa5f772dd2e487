package store

import "github.com/roach88/routine/internal/ir"

// InvocationRecord is a persisted invocation.
type InvocationRecord struct {
	ID          string
	OperationID string
	ActionType  string // The operation's trigger type
	Payload     ir.Array
	Seq         int64
}

// EventRecord is a persisted lifecycle event.
//
// Named strategies are restored into Event.Strategy. Custom strategies
// cannot be persisted; Event.Strategy is left zero and StrategyLabel holds
// "custom:<label>" so replay can rebind the function by operation id.
type EventRecord struct {
	ID            string
	Event         ir.Event
	StrategyLabel string
}

// EventFilter narrows ReadEvents. Zero fields match everything.
type EventFilter struct {
	InvocationID string
	OperationID  string
	Kinds        []ir.Kind
	AfterSeq     int64 // Only events with seq > AfterSeq
	Limit        int
}
