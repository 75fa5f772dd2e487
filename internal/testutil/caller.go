package testutil

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/routine"
)

// ErrScriptExhausted is returned by a ScriptedCaller called more often than
// it has outcomes. The engine treats it as a fatal transport error.
var ErrScriptExhausted = errors.New("scripted caller: no outcome left")

// Outcome is one scripted result of a call.
type Outcome struct {
	Data   ir.Value // returned on success
	Error  ir.Value // response body of a recoverable failure
	Fatal  error    // transport-level failure without a body
	Status int

	// Gate, when set, blocks the call until it is closed.
	Gate <-chan struct{}

	failed bool
}

// Succeed scripts a successful call returning data.
func Succeed(data ir.Value) Outcome {
	return Outcome{Data: data, Status: 200}
}

// Fail scripts a recoverable failure whose body is errBody.
func Fail(errBody ir.Value) Outcome {
	return Outcome{Error: errBody, Status: 500, failed: true}
}

// FailFatal scripts a failure without a response.
func FailFatal(err error) Outcome {
	return Outcome{Fatal: err}
}

// After returns o gated on gate.
func (o Outcome) After(gate <-chan struct{}) Outcome {
	o.Gate = gate
	return o
}

// ScriptedCaller replays outcomes in order and records call payloads.
//
// Thread-safety: ScriptedCaller is safe for concurrent use.
type ScriptedCaller struct {
	mu       sync.Mutex
	outcomes []Outcome
	calls    []ir.Array
}

// NewScriptedCaller creates a caller that returns outcomes in order.
func NewScriptedCaller(outcomes ...Outcome) *ScriptedCaller {
	return &ScriptedCaller{outcomes: outcomes}
}

// Call implements routine.Caller.
func (c *ScriptedCaller) Call(ctx context.Context, payload ...ir.Value) (*routine.Response, error) {
	c.mu.Lock()
	idx := len(c.calls)
	c.calls = append(c.calls, ir.Array(payload).Clone())
	var o Outcome
	ok := idx < len(c.outcomes)
	if ok {
		o = c.outcomes[idx]
	}
	c.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("%w (call %d)", ErrScriptExhausted, idx+1)
	}

	if o.Gate != nil {
		select {
		case <-o.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	switch {
	case o.Fatal != nil:
		return nil, o.Fatal
	case o.failed:
		return nil, &routine.ResponseError{
			Response: &routine.Response{Status: o.Status, Data: o.Error},
			Err:      fmt.Errorf("status %d", o.Status),
		}
	default:
		return &routine.Response{Status: o.Status, Data: o.Data}, nil
	}
}

// Caller returns c.Call as a routine.Caller.
func (c *ScriptedCaller) Caller() routine.Caller {
	return c.Call
}

// Calls returns the payloads of every call so far.
func (c *ScriptedCaller) Calls() []ir.Array {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ir.Array, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many times the caller ran.
func (c *ScriptedCaller) CallCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}
