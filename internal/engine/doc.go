// Package engine runs operation lifecycles and folds their events into state.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Run applies the reducer in one goroutine, one action at a time. This
// ensures:
//   - No two reducer applications interleave
//   - Every event gets a unique, increasing seq from the logical clock
//   - The event log order equals the order state was built in
//
// Action Processing Flow:
//  1. Dispatch enqueues an action on the FIFO queue (any goroutine)
//  2. Run dequeues it
//  3. A routine.Invocation gets an invocation id and starts its lifecycle
//     in a new goroutine
//  4. Any other action is stamped, reduced, persisted and published
//
// Lifecycle goroutines never touch state. They only dispatch events, so
// the only point where an invocation waits is its call.
//
// ORDERING:
// Within one invocation Trigger precedes Request precedes exactly one of
// Success or Fail, because one goroutine enqueues all three on a FIFO queue.
// Across invocations there is no ordering: a slow call's Success may land
// after a newer call's Success and overwrite it. Seq stamps make this
// visible in the event log but nothing discards stale events.
package engine
