package manifest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/engine"
	"github.com/roach88/routine/internal/httpapi"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/testutil"
)

const todosCUE = `
operation: fetchTodos: {
	prefix:      "todos/FETCH"
	reducer_key: "todos.items"
	transform:   "replace"
	endpoint: {method: "GET", url: "/todos"}
}

operation: createTodo: {
	prefix:      "todos/CREATE"
	reducer_key: "todos.created"
	transform:   "replace"
	endpoint: {method: "POST", url: "/todos", body_arg: 0}
	on_success:  "fetchTodos"
	on_fail:     "fetchTodos"
}
`

const statsCUE = `
operation: countTodos: {
	prefix:      "stats/COUNT"
	id:          "count"
	reducer_key: ["stats", "count"]
	transform:   "replace"
	endpoint: {url: "/stats"}
}
`

func writeManifests(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

// stubCallers returns a factory handing out one scripted caller per
// operation name.
func stubCallers(scripts map[string]*testutil.ScriptedCaller) CallerFactory {
	return func(def *ir.OperationDef) (routine.Caller, error) {
		if s, ok := scripts[def.Name]; ok {
			return s.Caller(), nil
		}
		return testutil.NewScriptedCaller().Caller(), nil
	}
}

func TestLoadDir_FileOrder(t *testing.T) {
	dir := writeManifests(t, map[string]string{
		"b_stats.cue": statsCUE,
		"a_todos.cue": todosCUE,
		"notes.txt":   "ignored",
	})

	defs, err := LoadDir(dir)
	require.NoError(t, err)

	var names []string
	for _, d := range defs {
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"fetchTodos", "createTodo", "countTodos"}, names)
}

func TestLoadDir_Empty(t *testing.T) {
	_, err := LoadDir(t.TempDir())
	assert.ErrorContains(t, err, "no .cue files")
}

func TestLoadFiles_CompileErrorNamesFile(t *testing.T) {
	dir := writeManifests(t, map[string]string{
		"bad.cue": `operation: x: {prefix: "x/GET", reducer_key: "a"}`,
	})

	_, err := LoadFiles(filepath.Join(dir, "bad.cue"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.cue")
	assert.Contains(t, err.Error(), "transform")
}

func TestLoadFiles_SyntaxError(t *testing.T) {
	dir := writeManifests(t, map[string]string{"broken.cue": `operation: {`})
	_, err := LoadFiles(filepath.Join(dir, "broken.cue"))
	assert.Error(t, err)
}

func TestValidate_CrossFileDuplicates(t *testing.T) {
	dir := writeManifests(t, map[string]string{
		"a.cue": statsCUE,
		"b.cue": statsCUE,
	})
	defs, err := LoadDir(dir)
	require.NoError(t, err)

	err = Validate(defs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate operation name")
	assert.Contains(t, err.Error(), "E111")
}

func TestBind_BuildsRegistry(t *testing.T) {
	dir := writeManifests(t, map[string]string{"todos.cue": todosCUE, "stats.cue": statsCUE})
	defs, err := LoadDir(dir)
	require.NoError(t, err)

	bound, err := Bind(defs, stubCallers(nil))
	require.NoError(t, err)

	assert.Equal(t, 3, bound.Registry.Len())
	assert.Equal(t, []string{"countTodos", "fetchTodos", "createTodo"}, bound.Names())

	op, ok := bound.Lookup("countTodos")
	require.True(t, ok)
	assert.Equal(t, "count", op.ID())

	op, ok = bound.Lookup("todos/FETCH")
	require.True(t, ok)
	assert.Equal(t, ir.KeyPath{"todos", "items"}, op.KeyPath())

	_, ok = bound.Lookup("nope")
	assert.False(t, ok)
}

func TestBind_RejectsInvalidManifest(t *testing.T) {
	defs := []*ir.OperationDef{{
		Name:       "a",
		Prefix:     "a/GET",
		ReducerKey: ir.KeyPath{"a"},
		Transform:  "replace",
		OnSuccess:  "ghost",
	}}

	_, err := Bind(defs, stubCallers(nil))
	assert.ErrorContains(t, err, "unknown operation")
}

func TestBind_FactoryError(t *testing.T) {
	dir := writeManifests(t, map[string]string{"todos.cue": todosCUE})
	defs, err := LoadDir(dir)
	require.NoError(t, err)

	defs[0].Endpoint = nil
	_, err = Bind(defs, HTTPCallers(httpapi.NewClient("", 0)))
	assert.ErrorContains(t, err, "has no endpoint")
}

func TestBind_FollowUpsDispatchByName(t *testing.T) {
	dir := writeManifests(t, map[string]string{"todos.cue": todosCUE})
	defs, err := LoadDir(dir)
	require.NoError(t, err)

	fetch := testutil.NewScriptedCaller(
		testutil.Succeed(ir.Array{ir.String("one")}),
		testutil.Succeed(ir.Array{}),
	)
	create := testutil.NewScriptedCaller(
		testutil.Succeed(ir.Object{"id": ir.Int(1)}),
		testutil.Fail(ir.String("dup")),
	)
	bound, err := Bind(defs, stubCallers(map[string]*testutil.ScriptedCaller{
		"fetchTodos": fetch,
		"createTodo": create,
	}))
	require.NoError(t, err)

	e := engine.New(reducer.New(nil), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = e.Run(ctx) }()

	op, _ := bound.Lookup("createTodo")
	settleCtx, stop := context.WithTimeout(ctx, 5*time.Second)
	defer stop()

	e.Dispatch(op.Invoke(ir.Object{"title": ir.String("x")}))
	require.NoError(t, e.Settle(settleCtx))
	e.Dispatch(op.Invoke(ir.Object{"title": ir.String("x")}))
	require.NoError(t, e.Settle(settleCtx))

	// on_success forwards the payload, on_fail sends none.
	assert.Equal(t, []ir.Array{{ir.Object{"title": ir.String("x")}}, {}}, fetch.Calls())

	items, ok := reducer.ValueAt(e.State(), ir.KeyPath{"todos", "items"})
	require.True(t, ok)
	assert.Equal(t, ir.Array{}, items)
}

func TestHTTPCallers_EndToEnd(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"count":3}`))
	}))
	defer srv.Close()

	dir := writeManifests(t, map[string]string{"stats.cue": statsCUE})
	defs, err := LoadDir(dir)
	require.NoError(t, err)

	bound, err := Bind(defs, HTTPCallers(httpapi.NewClient(srv.URL, time.Second)))
	require.NoError(t, err)

	op, _ := bound.Lookup("count")
	resp, err := op.Call(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ir.Object{"count": ir.Int(3)}, resp.Data)
}
