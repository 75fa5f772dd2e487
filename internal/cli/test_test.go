package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: fetch
description: "fetch stores the list"
specs: [../specs/todos.cue]
stubs:
  fetchTodos:
    - data: [a]
flow:
  - dispatch: fetchTodos
assertions:
  - type: state_equals
    path: todos.items
    value: [a]
`

const failingScenario = `
name: wrong
description: "expects the wrong list"
specs: [../specs/todos.cue]
stubs:
  fetchTodos:
    - data: [a]
flow:
  - dispatch: fetchTodos
assertions:
  - type: state_equals
    path: todos.items
    value: [b]
`

// scenarioTree lays out specs/ and scenarios/ side by side.
func scenarioTree(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "specs"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scenarios"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "specs", "todos.cue"), []byte(todosSpec), 0o644))
	for name, src := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(root, "scenarios", name), []byte(src), 0o644))
	}
	return filepath.Join(root, "scenarios")
}

func TestTests_Pass(t *testing.T) {
	dir := scenarioTree(t, map[string]string{"fetch.yaml": passingScenario})
	opts := &TestOptions{RootOptions: &RootOptions{Format: "text"}}
	cmd, buf := testCommand()

	require.NoError(t, runTests(opts, []string{dir}, cmd))
	assert.Contains(t, buf.String(), "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestTests_Failure(t *testing.T) {
	dir := scenarioTree(t, map[string]string{
		"fetch.yaml": passingScenario,
		"wrong.yaml": failingScenario,
	})
	opts := &TestOptions{RootOptions: &RootOptions{Format: "json"}}
	cmd, buf := testCommand()

	err := runTests(opts, []string{dir}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, buf.String(), &result)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "wrong", result.Scenarios[1].Name)
	assert.NotEmpty(t, result.Scenarios[1].Errors)
}

func TestTests_Filter(t *testing.T) {
	dir := scenarioTree(t, map[string]string{
		"fetch.yaml": passingScenario,
		"wrong.yaml": failingScenario,
	})
	opts := &TestOptions{RootOptions: &RootOptions{Format: "text"}, Filter: "fe*"}
	cmd, buf := testCommand()

	require.NoError(t, runTests(opts, []string{dir}, cmd))
	assert.Contains(t, buf.String(), "1 total")
}

func TestTests_GoldenUpdateThenMatch(t *testing.T) {
	dir := scenarioTree(t, map[string]string{"fetch.yaml": passingScenario})
	file := filepath.Join(dir, "fetch.yaml")

	cmd, buf := testCommand()
	update := &TestOptions{RootOptions: &RootOptions{Format: "text"}, Update: true}
	require.NoError(t, runTests(update, []string{file}, cmd))
	assert.Contains(t, buf.String(), "(golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "fetch.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario_name":"fetch"`)

	// The golden directory is not scanned for scenarios.
	cmd, _ = testCommand()
	check := &TestOptions{RootOptions: &RootOptions{Format: "json"}}
	require.NoError(t, runTests(check, []string{dir}, cmd))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "fetch.golden"), []byte("{}"), 0o644))
	cmd, buf = testCommand()
	err = runTests(check, []string{dir}, cmd)
	require.Error(t, err)
	assert.Contains(t, buf.String(), "does not match golden file")
}

func TestTests_MissingPath(t *testing.T) {
	opts := &TestOptions{RootOptions: &RootOptions{Format: "text"}}
	cmd, _ := testCommand()

	err := runTests(opts, []string{filepath.Join(t.TempDir(), "nope")}, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
