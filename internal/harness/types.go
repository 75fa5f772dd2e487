package harness

import "github.com/roach88/routine/internal/ir"

// TraceEvent is one persisted lifecycle event, flattened for assertions
// and golden files.
type TraceEvent struct {
	Seq        int64    `json:"seq"`
	Kind       string   `json:"kind"` // trigger, request, success, fail, clear
	Type       string   `json:"type"`
	Operation  string   `json:"operation,omitempty"`
	Invocation string   `json:"invocation,omitempty"`
	KeyPath    string   `json:"key_path,omitempty"`
	Payload    ir.Array `json:"payload,omitempty"`
	Response   ir.Value `json:"response,omitempty"`
	Error      ir.Value `json:"error,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion held and replay matched the live state.
	Pass bool `json:"pass"`

	// Trace contains every persisted event in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Fatal collects fatal transport errors reported by the engine.
	Fatal []string `json:"fatal,omitempty"`

	// State is the final state tree.
	State ir.Object `json:"state,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  ir.Object{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
