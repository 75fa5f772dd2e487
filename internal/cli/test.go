package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern on the file name)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	Golden string   `json:"golden,omitempty"` // "match", "updated" or "missing"
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-file-or-dir>...",
		Short: "Run lifecycle scenarios",
		Long: `Run YAML scenarios against the engine with scripted call outcomes.

Spec paths inside a scenario are relative to the scenario file. When a
golden file exists at <scenario-dir>/golden/<name>.golden, the canonical
trace must match it byte for byte.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  routine test ./scenarios
  routine test ./scenarios --filter "fetch_*"
  routine test ./scenarios/crud.yaml --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, paths []string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return out.Error(ErrCodeNotFound, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(file, opts.Update)
		printScenario(out, sr)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	var cliErr *CLIError
	var exitErr error
	if result.Failed > 0 {
		msg := fmt.Sprintf("%d scenario(s) failed", result.Failed)
		cliErr = &CLIError{Code: ErrCodeTestFailed, Message: msg}
		exitErr = NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		if err := out.Respond(result, cliErr); err != nil {
			return err
		}
		return exitErr
	}

	if result.Total == 0 {
		out.Printf("No scenarios found.\n")
		return nil
	}
	out.Printf("\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if exitErr == nil {
		out.Printf("%s All scenarios passed\n", markOK)
	}
	return exitErr
}

// findScenarioFiles returns path itself for a file, or every YAML file
// under a directory, sorted. Golden directories are skipped.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		ok, err := matchesFilter(path, filter)
		if err != nil || !ok {
			return nil, err
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" && p != path {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		ok, err := matchesFilter(p, filter)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, p)
		}
		return nil
	})
	sort.Strings(files)
	return files, err
}

func matchesFilter(path, filter string) (bool, error) {
	if filter == "" {
		return true, nil
	}
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	ok, err := filepath.Match(filter, name)
	if err != nil {
		return false, fmt.Errorf("invalid filter pattern: %w", err)
	}
	return ok, nil
}

// runScenario executes a single scenario and checks its golden file.
func runScenario(file string, update bool) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name

	result, err := harness.Run(scenario)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Errors = result.Errors

	snapshot, err := harness.SnapshotJSON(scenario.Name, result)
	if err != nil {
		sr.Errors = append(sr.Errors, fmt.Sprintf("failed to build snapshot: %v", err))
		return sr
	}

	goldenPath := goldenFilePath(file)
	switch {
	case update:
		if err := writeGolden(goldenPath, snapshot); err != nil {
			sr.Errors = append(sr.Errors, err.Error())
			return sr
		}
		sr.Golden = "updated"
	default:
		want, err := os.ReadFile(goldenPath)
		switch {
		case os.IsNotExist(err):
			sr.Golden = "missing"
		case err != nil:
			sr.Errors = append(sr.Errors, fmt.Sprintf("failed to read golden file: %v", err))
		case !bytes.Equal(bytes.TrimSpace(want), snapshot):
			sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
		default:
			sr.Golden = "match"
		}
	}

	sr.Pass = len(sr.Errors) == 0
	return sr
}

func printScenario(out *OutputFormatter, sr ScenarioResult) {
	mark := markOK
	if !sr.Pass {
		mark = markFail
	}
	out.Printf("%s %s", mark, sr.Name)
	if sr.Golden == "updated" {
		out.Printf(" (golden updated)")
	}
	out.Printf("\n")
	for _, e := range sr.Errors {
		out.Printf("  %s\n", e)
	}
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

func writeGolden(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}
