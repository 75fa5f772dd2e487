package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/manifest"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/testutil"
)

const todosSpec = `
operation: fetchTodos: {
	prefix:      "todos/FETCH"
	reducer_key: "todos.items"
	transform:   "replace"
	endpoint: {url: "/todos"}
}

operation: addTodo: {
	prefix:      "todos/ADD"
	reducer_key: "todos.items"
	transform:   "append"
	endpoint: {method: "POST", url: "/todos", body_arg: 0}
	on_fail: "fetchTodos"
}
`

// writeSpecs writes CUE manifests into a fresh directory.
func writeSpecs(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
	}
	return dir
}

// scripted binds each operation name to a scripted caller; unknown names
// get an empty script.
func scripted(scripts map[string]*testutil.ScriptedCaller) manifest.CallerFactory {
	return func(def *ir.OperationDef) (routine.Caller, error) {
		if s, ok := scripts[def.Name]; ok {
			return s.Caller(), nil
		}
		return testutil.NewScriptedCaller().Caller(), nil
	}
}

// testCommand returns a bare command writing to a buffer.
func testCommand() (*cobra.Command, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	return cmd, buf
}

// runWith dispatches ops against specsDir using scripts and returns the
// command output.
func runWith(t *testing.T, specsDir, db, format string, scripts map[string]*testutil.ScriptedCaller, dispatch ...string) (string, error) {
	t.Helper()
	opts := &RunOptions{
		RootOptions: &RootOptions{Format: format},
		Database:    db,
		Dispatch:    dispatch,
		Args:        "[]",
		Wait:        5 * time.Second,
		Callers:     scripted(scripts),
	}
	cmd, buf := testCommand()
	err := runOperations(opts, specsDir, cmd)
	return buf.String(), err
}

func decodeResponse(t *testing.T, out string, data any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), "output: %s", out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}
