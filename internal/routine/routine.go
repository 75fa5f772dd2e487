package routine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/routine/internal/ir"
)

// Action types that are not tied to a single operation.
const (
	// InitType is the action type of every Invocation. The engine intercepts
	// it and starts the lifecycle.
	InitType = "@@routine/INIT"

	// ClearType is the action type of Clear events.
	ClearType = "@@routine/CLEAR"
)

// Suffixes appended to an operation prefix.
const (
	RequestSuffix = "/REQUEST"
	SuccessSuffix = "/SUCCESS"
	FailSuffix    = "/FAIL"
)

// ActionTypes are the four action types of one operation.
type ActionTypes struct {
	Trigger string
	Request string
	Success string
	Fail    string
}

// NewActionTypes derives the action types from a prefix.
func NewActionTypes(prefix string) ActionTypes {
	return ActionTypes{
		Trigger: prefix,
		Request: prefix + RequestSuffix,
		Success: prefix + SuccessSuffix,
		Fail:    prefix + FailSuffix,
	}
}

// Config declares an operation.
type Config struct {
	// Prefix names the operation, e.g. "todos/FETCH". Required.
	Prefix string

	// ID keys the operation's loading flag. Defaults to Prefix.
	ID string

	// API is the async call. Required.
	API Caller

	// ReducerKey locates the operation's slot in the state tree. Required.
	ReducerKey ir.KeyPath

	// Transform merges the response into the slot. Required.
	Transform ir.Strategy

	// OnSuccess builds an action dispatched after Success, called with the
	// invocation payload.
	OnSuccess func(payload ...ir.Value) ir.Action

	// OnFail builds an action dispatched after Fail.
	OnFail func() ir.Action
}

// Operation is an immutable operation descriptor.
type Operation struct {
	id        string
	prefix    string
	types     ActionTypes
	call      Caller
	keyPath   ir.KeyPath
	strategy  ir.Strategy
	onSuccess func(payload ...ir.Value) ir.Action
	onFail    func() ir.Action
}

// New validates cfg and builds an Operation.
func New(cfg Config) (*Operation, error) {
	prefix := cfg.Prefix
	bad := func(field, msg string) error {
		return &ConfigurationError{Prefix: prefix, Field: field, Message: msg}
	}

	switch {
	case strings.TrimSpace(prefix) == "":
		return nil, bad("prefix", "prefix is required")
	case strings.HasSuffix(prefix, "/"):
		return nil, bad("prefix", "prefix must not end with /")
	}

	if cfg.API == nil {
		return nil, bad("api", "api callable is required")
	}

	if err := cfg.ReducerKey.Validate(); err != nil {
		return nil, bad("reducer_key", err.Error())
	}

	if err := cfg.Transform.Validate(); err != nil {
		return nil, bad("transform", err.Error())
	}

	id := cfg.ID
	if id == "" {
		id = prefix
	} else if strings.TrimSpace(id) == "" {
		return nil, bad("id", "id must not be blank")
	}

	return &Operation{
		id:        id,
		prefix:    prefix,
		types:     NewActionTypes(prefix),
		call:      cfg.API,
		keyPath:   cfg.ReducerKey.Clone(),
		strategy:  cfg.Transform,
		onSuccess: cfg.OnSuccess,
		onFail:    cfg.OnFail,
	}, nil
}

// MustNew is like New but panics on error.
// Use for package-level declarations.
func MustNew(cfg Config) *Operation {
	op, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return op
}

// ID returns the operation id used for loading flags, metrics and logs.
func (o *Operation) ID() string { return o.id }

// Prefix returns the declared prefix.
func (o *Operation) Prefix() string { return o.prefix }

// Types returns the operation's action types.
func (o *Operation) Types() ActionTypes { return o.types }

// KeyPath returns a copy of the operation's key path.
func (o *Operation) KeyPath() ir.KeyPath { return o.keyPath.Clone() }

// Strategy returns the merge strategy.
func (o *Operation) Strategy() ir.Strategy { return o.strategy }

// Call runs the operation's API.
func (o *Operation) Call(ctx context.Context, payload ...ir.Value) (*Response, error) {
	return o.call(ctx, payload...)
}

// SuccessFollowUp returns the action to dispatch after Success, if any.
func (o *Operation) SuccessFollowUp(payload ir.Array) (ir.Action, bool) {
	if o.onSuccess == nil {
		return nil, false
	}
	a := o.onSuccess(payload...)
	return a, a != nil
}

// FailFollowUp returns the action to dispatch after Fail, if any.
func (o *Operation) FailFollowUp() (ir.Action, bool) {
	if o.onFail == nil {
		return nil, false
	}
	a := o.onFail()
	return a, a != nil
}

// Invoke returns a dispatchable invocation carrying payload.
func (o *Operation) Invoke(payload ...ir.Value) Invocation {
	return Invocation{Operation: o, Payload: ir.Array(payload).Clone()}
}

func (o *Operation) String() string {
	return fmt.Sprintf("%s(%s -> %s, %s)", o.prefix, o.id, o.keyPath, o.strategy)
}

// Invocation is one dispatch of an operation.
type Invocation struct {
	Operation *Operation
	Payload   ir.Array
}

// ActionType implements ir.Action.
func (Invocation) ActionType() string { return InitType }

// Clear returns an event that erases the value at keyPath. It does not touch
// loading flags and can be dispatched without any operation.
func Clear(keyPath ir.KeyPath) ir.Event {
	return ir.Event{
		Kind:    ir.KindClear,
		Type:    ClearType,
		KeyPath: keyPath.Clone(),
	}
}
