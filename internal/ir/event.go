package ir

import "fmt"

// Action is anything that can be dispatched onto the engine's event bus.
// ActionType is the host-visible type string, e.g. "todos/FETCH/SUCCESS".
type Action interface {
	ActionType() string
}

// Kind tags a lifecycle event. It is decided when the event is built and is
// never re-derived from the action type string.
type Kind int

const (
	// KindTrigger marks the start of an invocation. It does not change state.
	KindTrigger Kind = iota + 1
	// KindRequest sets the operation's loading flag and clears its stale error.
	KindRequest
	// KindSuccess applies the response at the operation's key path.
	KindSuccess
	// KindFail clears the loading flag and records the error.
	KindFail
	// KindClear erases a key path without touching loading flags.
	KindClear
)

var kindNames = map[Kind]string{
	KindTrigger: "trigger",
	KindRequest: "request",
	KindSuccess: "success",
	KindFail:    "fail",
	KindClear:   "clear",
}

// String returns the lower-case kind name used in logs and the event log.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown event kind %q", s)
}

// Terminal reports whether the kind ends an invocation.
func (k Kind) Terminal() bool {
	return k == KindSuccess || k == KindFail
}

// Event is a lifecycle event: the vocabulary the engine uses to describe an
// invocation's progress to the reducer.
//
// Field usage by kind:
//   - Trigger, Request: Payload
//   - Success: Response, Strategy, Payload
//   - Fail: Error
//   - Clear: KeyPath only
type Event struct {
	Kind         Kind     `json:"kind"`
	Type         string   `json:"type"`
	OperationID  string   `json:"operation_id,omitempty"`
	InvocationID string   `json:"invocation_id,omitempty"`
	KeyPath      KeyPath  `json:"key_path"`
	Payload      Array    `json:"payload,omitempty"`
	Response     Value    `json:"response,omitempty"`
	Strategy     Strategy `json:"-"`
	Error        Value    `json:"error,omitempty"`
	Seq          int64    `json:"seq"` // Logical clock, stamped by the engine
}

// ActionType implements Action.
func (e Event) ActionType() string {
	return e.Type
}
