// Package harness runs YAML lifecycle scenarios against the real engine.
//
// A scenario loads CUE operation manifests, replaces every call with a
// scripted stub, dispatches a flow of invocations and clears, and then
// checks the final state and the persisted event trace.
//
// # Scenario Format
//
//	name: fetch_todos
//	description: "Fetching todos fills the list and clears loading"
//	specs:
//	  - ../specs/todos.cue
//	initial_state: { todos: { items: [] } }
//	stubs:
//	  fetchTodos:
//	    - data: [{ id: 1, title: "a" }]
//	    - error: "some error"
//	    - fatal: "connection refused"
//	flow:
//	  - dispatch: fetchTodos
//	    args: [1]
//	  - clear: todos.draft
//	assertions:
//	  - type: state_equals
//	    path: todos.items
//	    value: [{ id: 1, title: "a" }]
//	  - type: loading
//	    operation: todos/FETCH
//	    value: false
//	  - type: trace_order
//	    events: [todos/FETCH, todos/FETCH/REQUEST, todos/FETCH/SUCCESS]
//
// Stub outcomes are consumed in call order; an operation called more often
// than scripted fails fatally.
//
// # Assertion Types
//
//   - state_equals: the value at path equals value
//   - state_absent: nothing is stored at path
//   - loading: the operation's loading flag equals value
//   - error_equals: the error recorded for path equals value
//   - trace_order: event types appear in this order (gaps allowed)
//   - trace_count: an event type appears exactly count times
//
// # Deterministic Testing
//
// Each scenario runs on a fresh in-memory store with sequential invocation
// ids ("inv-1", "inv-2", ...) and waits for the engine to settle after every
// flow step, so the same scenario always produces the same trace. After the
// flow, the event log is replayed and must reproduce the live state.
package harness
