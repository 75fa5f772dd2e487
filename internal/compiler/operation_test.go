package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/ir"
)

func compile(t *testing.T, src string) cue.Value {
	t.Helper()
	v := cuecontext.New().CompileString(src, cue.Filename("ops.cue"))
	require.NoError(t, v.Err())
	return v
}

func TestCompileOperationBasic(t *testing.T) {
	v := compile(t, `
		operation: fetchTodos: {
			prefix:      "todos/FETCH"
			reducer_key: "todos.items"
			transform:   "replace"
			endpoint: {method: "get", url: "/todos"}
			on_success:  "countTodos"
		}
	`)

	def, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.fetchTodos")))
	require.NoError(t, err)

	assert.Equal(t, &ir.OperationDef{
		Name:       "fetchTodos",
		Prefix:     "todos/FETCH",
		ReducerKey: ir.KeyPath{"todos", "items"},
		Transform:  "replace",
		Endpoint:   &ir.EndpointDef{Method: "GET", URL: "/todos", BodyArg: -1},
		OnSuccess:  "countTodos",
	}, def)
	assert.Equal(t, "todos/FETCH", def.OperationID())
}

func TestCompileOperationListKeyAndBodyArg(t *testing.T) {
	v := compile(t, `
		operation: createTodo: {
			prefix:      "todos/CREATE"
			id:          "create"
			reducer_key: ["todos", "items"]
			transform:   "concat"
			endpoint: {method: "POST", url: "/lists/{0}/todos", body_arg: 1}
			on_fail:     "fetchTodos"
		}
	`)

	def, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.createTodo")))
	require.NoError(t, err)

	assert.Equal(t, "create", def.OperationID())
	assert.Equal(t, ir.KeyPath{"todos", "items"}, def.ReducerKey)
	assert.Equal(t, 1, def.Endpoint.BodyArg)
	assert.Equal(t, "fetchTodos", def.OnFail)
}

func TestCompileOperationWithoutEndpoint(t *testing.T) {
	v := compile(t, `
		operation: local: {
			prefix:      "local/SET"
			reducer_key: "local"
			transform:   "replace"
		}
	`)

	def, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.local")))
	require.NoError(t, err)
	assert.Nil(t, def.Endpoint)
}

func TestCompileOperationErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
	}{
		{"missing prefix", `operation: x: {reducer_key: "a", transform: "replace"}`, "prefix"},
		{"missing transform", `operation: x: {prefix: "x/GET", reducer_key: "a"}`, "transform"},
		{"missing reducer key", `operation: x: {prefix: "x/GET", transform: "replace"}`, "reducer_key"},
		{"numeric prefix", `operation: x: {prefix: 3, reducer_key: "a", transform: "replace"}`, "prefix"},
		{"bad key segments", `operation: x: {prefix: "x/GET", reducer_key: [1], transform: "replace"}`, "reducer_key"},
		{"endpoint without url", `operation: x: {prefix: "x/GET", reducer_key: "a", transform: "replace", endpoint: {method: "GET"}}`, "url"},
		{"non-integer body arg", `operation: x: {prefix: "x/GET", reducer_key: "a", transform: "replace", endpoint: {url: "/x", body_arg: "0"}}`, "endpoint.body_arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := compile(t, tt.src)
			_, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.x")))
			require.Error(t, err)

			var ce *CompileError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestCompileOperationErrorHasPosition(t *testing.T) {
	v := compile(t, `
operation: x: {
	prefix: "x/GET"
	reducer_key: "a"
}
`)
	_, err := CompileOperation(v.LookupPath(cue.ParsePath("operation.x")))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ops.cue:")
}

func TestCompileOperationsSourceOrder(t *testing.T) {
	v := compile(t, `
		operation: zeta: {prefix: "z/GET", reducer_key: "z", transform: "replace"}
		operation: alpha: {prefix: "a/GET", reducer_key: "a", transform: "remove"}
	`)

	defs, err := CompileOperations(v)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "zeta", defs[0].Name)
	assert.Equal(t, "alpha", defs[1].Name)
}

func TestCompileOperationsEmpty(t *testing.T) {
	defs, err := CompileOperations(compile(t, `other: 1`))
	require.NoError(t, err)
	assert.Empty(t, defs)
}

func TestCompileOperationsConflict(t *testing.T) {
	v := cuecontext.New().CompileString(`
		operation: x: {prefix: "a"}
		operation: x: {prefix: "b"}
	`)
	_, err := CompileOperations(v)
	assert.Error(t, err)
}
