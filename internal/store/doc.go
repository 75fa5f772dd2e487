// Package store provides the SQLite-backed lifecycle event log.
//
// The log is append-only and holds:
//   - Invocations: one row per dispatched operation invocation
//   - Events: every lifecycle event (trigger, request, success, fail, clear)
//
// Application state is never stored. It is always derived by folding the
// reducer over the events in seq order.
//
// # Ordering
//
// All ordering uses the seq column (the engine's logical clock), never wall
// time. Every read orders by seq ASC, id COLLATE BINARY ASC so replays see
// identical sequences.
//
// # Identity
//
// Event ids are content-addressed (ir.EventID). Writes use ON CONFLICT DO
// NOTHING, so writing the same event twice is a no-op.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Events must reference a known invocation
package store
