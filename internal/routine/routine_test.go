package routine

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/ir"
)

func okCaller(ctx context.Context, payload ...ir.Value) (*Response, error) {
	return &Response{Status: 200, Data: ir.String("ok")}, nil
}

func validConfig() Config {
	return Config{
		Prefix:     "todos/FETCH",
		API:        okCaller,
		ReducerKey: ir.KeyPath{"todos", "items"},
		Transform:  ir.Named(ir.StrategyReplace),
	}
}

func TestNewDerivesActionTypes(t *testing.T) {
	op, err := New(validConfig())
	require.NoError(t, err)

	assert.Equal(t, ActionTypes{
		Trigger: "todos/FETCH",
		Request: "todos/FETCH/REQUEST",
		Success: "todos/FETCH/SUCCESS",
		Fail:    "todos/FETCH/FAIL",
	}, op.Types())
	assert.Equal(t, "todos/FETCH", op.Prefix())
}

func TestNewOperationIDDefaultsToPrefix(t *testing.T) {
	a, err := New(validConfig())
	require.NoError(t, err)
	assert.Equal(t, "todos/FETCH", a.ID())

	// Operations sharing a last segment no longer collide.
	cfg := validConfig()
	cfg.Prefix = "users/FETCH"
	b, err := New(cfg)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), b.ID())

	cfg.ID = "fetchUsers"
	c, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "fetchUsers", c.ID())
}

func TestNewConfigurationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty prefix", func(c *Config) { c.Prefix = "" }, "prefix"},
		{"blank prefix", func(c *Config) { c.Prefix = "  " }, "prefix"},
		{"trailing slash", func(c *Config) { c.Prefix = "todos/" }, "prefix"},
		{"nil api", func(c *Config) { c.API = nil }, "api"},
		{"nil key path", func(c *Config) { c.ReducerKey = nil }, "reducer_key"},
		{"empty segment", func(c *Config) { c.ReducerKey = ir.KeyPath{"todos", ""} }, "reducer_key"},
		{"missing strategy", func(c *Config) { c.Transform = ir.Strategy{} }, "transform"},
		{"unknown strategy", func(c *Config) { c.Transform = ir.Named("merge") }, "transform"},
		{"custom without func", func(c *Config) { c.Transform = ir.Custom("x", nil) }, "transform"},
		{"blank id", func(c *Config) { c.ID = " " }, "id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			op, err := New(cfg)
			require.Error(t, err)
			assert.Nil(t, op)
			assert.True(t, IsConfigurationError(err))

			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestMustNewPanics(t *testing.T) {
	assert.Panics(t, func() { MustNew(Config{}) })
	assert.NotPanics(t, func() { MustNew(validConfig()) })
}

func TestOperationIsImmutable(t *testing.T) {
	cfg := validConfig()
	op := MustNew(cfg)

	cfg.ReducerKey[0] = "changed"
	assert.Equal(t, ir.KeyPath{"todos", "items"}, op.KeyPath())

	kp := op.KeyPath()
	kp[0] = "changed"
	assert.Equal(t, ir.KeyPath{"todos", "items"}, op.KeyPath())
}

func TestInvoke(t *testing.T) {
	op := MustNew(validConfig())
	payload := []ir.Value{ir.Int(1), ir.String("x")}

	inv := op.Invoke(payload...)
	payload[0] = ir.Int(99)

	assert.Equal(t, InitType, inv.ActionType())
	assert.Same(t, op, inv.Operation)
	assert.Equal(t, ir.Array{ir.Int(1), ir.String("x")}, inv.Payload)
}

func TestCall(t *testing.T) {
	var got []ir.Value
	cfg := validConfig()
	cfg.API = func(ctx context.Context, payload ...ir.Value) (*Response, error) {
		got = payload
		return &Response{Status: 201, Data: ir.Bool(true)}, nil
	}
	op := MustNew(cfg)

	resp, err := op.Call(context.Background(), ir.Int(7))
	require.NoError(t, err)
	assert.Equal(t, 201, resp.Status)
	assert.Equal(t, []ir.Value{ir.Int(7)}, got)
}

func TestFollowUps(t *testing.T) {
	op := MustNew(validConfig())
	_, ok := op.SuccessFollowUp(nil)
	assert.False(t, ok)
	_, ok = op.FailFollowUp()
	assert.False(t, ok)

	cfg := validConfig()
	cfg.OnSuccess = func(payload ...ir.Value) ir.Action {
		return Clear(ir.KeyPath{fmt.Sprint(len(payload))})
	}
	cfg.OnFail = func() ir.Action { return Clear(ir.KeyPath{"failed"}) }
	op = MustNew(cfg)

	a, ok := op.SuccessFollowUp(ir.Array{ir.Int(1), ir.Int(2)})
	require.True(t, ok)
	assert.Equal(t, ir.KeyPath{"2"}, a.(ir.Event).KeyPath)

	a, ok = op.FailFollowUp()
	require.True(t, ok)
	assert.Equal(t, ir.KeyPath{"failed"}, a.(ir.Event).KeyPath)
}

func TestEventsCarryKindAndOperationID(t *testing.T) {
	cfg := validConfig()
	cfg.ID = "fetch"
	op := MustNew(cfg)
	payload := ir.Array{ir.Int(1)}

	trigger := op.TriggerEvent(payload)
	assert.Equal(t, ir.KindTrigger, trigger.Kind)
	assert.Equal(t, "todos/FETCH", trigger.Type)

	request := op.RequestEvent(payload)
	assert.Equal(t, ir.KindRequest, request.Kind)
	assert.Equal(t, "todos/FETCH/REQUEST", request.Type)
	assert.Equal(t, "fetch", request.OperationID)
	assert.Equal(t, payload, request.Payload)

	success := op.SuccessEvent(ir.String("body"), payload)
	assert.Equal(t, ir.KindSuccess, success.Kind)
	assert.Equal(t, ir.String("body"), success.Response)
	assert.True(t, success.Strategy.Is(ir.StrategyReplace))

	fail := op.FailEvent(ir.Bool(false))
	assert.Equal(t, ir.KindFail, fail.Kind)
	assert.Equal(t, "todos/FETCH/FAIL", fail.Type)
	assert.Equal(t, ir.Bool(false), fail.Error)
	assert.Equal(t, ir.KeyPath{"todos", "items"}, fail.KeyPath)
}

func TestClear(t *testing.T) {
	path := ir.KeyPath{"todos"}
	ev := Clear(path)
	path[0] = "changed"

	assert.Equal(t, ir.KindClear, ev.Kind)
	assert.Equal(t, ClearType, ev.ActionType())
	assert.Equal(t, ir.KeyPath{"todos"}, ev.KeyPath)
	assert.Empty(t, ev.OperationID)
}

func TestResponseError(t *testing.T) {
	cause := errors.New("bad request")
	err := fmt.Errorf("call: %w", &ResponseError{
		Response: &Response{Status: 400, Data: ir.String("some error")},
		Err:      cause,
	})

	re, ok := AsResponseError(err)
	require.True(t, ok)
	assert.Equal(t, ir.String("some error"), re.Response.Data)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "status 400")

	_, ok = AsResponseError(&ResponseError{Err: cause})
	assert.False(t, ok, "no response means no recoverable body")

	_, ok = AsResponseError(cause)
	assert.False(t, ok)
}
