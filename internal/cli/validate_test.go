package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/routine/internal/compiler"
)

func TestValidate_Valid(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"todos.cue": todosSpec})
	cmd, buf := testCommand()

	err := runValidate(&RootOptions{Format: "text"}, dir, cmd)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "2 operation(s) valid")
}

func TestValidate_ValidJSON(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"todos.cue": todosSpec})
	cmd, buf := testCommand()

	require.NoError(t, runValidate(&RootOptions{Format: "json"}, dir, cmd))

	var result ValidationResult
	resp := decodeResponse(t, buf.String(), &result)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, []string{"fetchTodos", "addTodo"}, result.Operations)
}

func TestValidate_Errors(t *testing.T) {
	dir := writeSpecs(t, map[string]string{
		"a.cue": todosSpec,
		"b.cue": `
operation: other: {
	prefix:      "todos/FETCH"
	reducer_key: "other"
	transform:   "replace"
	endpoint: {url: "/other"}
	on_success: "nowhere"
}
`,
	})
	cmd, buf := testCommand()

	err := runValidate(&RootOptions{Format: "json"}, dir, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	resp := decodeResponse(t, buf.String(), &result)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)

	codes := map[string]bool{}
	for _, e := range result.Errors {
		codes[e.Code] = true
	}
	assert.True(t, codes[compiler.ErrDuplicateOperationID], "errors: %v", result.Errors)
	assert.True(t, codes[compiler.ErrUnknownFollowUp], "errors: %v", result.Errors)
}

func TestValidate_CycleWarning(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"poll.cue": `
operation: poll: {
	prefix:      "jobs/POLL"
	reducer_key: "jobs.status"
	transform:   "replace"
	endpoint: {url: "/jobs"}
	on_success: "poll"
}
`})
	cmd, buf := testCommand()

	require.NoError(t, runValidate(&RootOptions{Format: "text"}, dir, cmd))
	assert.Contains(t, buf.String(), "warning: Self-dispatching operation: poll")
	assert.Contains(t, buf.String(), "1 operation(s) valid")
}

func TestValidate_MissingDir(t *testing.T) {
	cmd, buf := testCommand()

	err := runValidate(&RootOptions{Format: "text"}, filepath.Join(t.TempDir(), "nope"), cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E002]")
}

func TestValidate_SyntaxError(t *testing.T) {
	dir := writeSpecs(t, map[string]string{"bad.cue": "operation: {"})
	cmd, buf := testCommand()

	err := runValidate(&RootOptions{Format: "text"}, dir, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E003]")
}
