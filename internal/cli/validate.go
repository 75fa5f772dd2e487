package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/compiler"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/manifest"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid      bool                       `json:"valid"`
	Operations []string                   `json:"operations"`
	Errors     []compiler.ValidationError `json:"errors,omitempty"`
	Warnings   []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate operation manifests",
		Long: `Compile and validate every CUE operation manifest in a directory.

Reports field errors, duplicate names or operation ids, and follow-ups
that name unknown operations. Follow-up cycles (on_success/on_fail chains
that re-enter themselves) are reported as warnings.

Exit codes:
  0 - All manifests valid (warnings allowed)
  1 - Validation errors
  2 - Command error (directory missing, CUE syntax error)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	out := newFormatter(opts, cmd.OutOrStdout())

	defs, err := loadManifests(specsDir)
	if err != nil {
		return out.Error(loadErrorCode(err), "failed to load manifests", err)
	}

	result := ValidationResult{
		Valid:      true,
		Operations: operationNames(defs),
		Errors:     compiler.ValidateOperations(defs),
		Warnings:   compiler.AnalyzeChains(defs),
	}
	result.Valid = len(result.Errors) == 0

	if out.JSON() {
		var cliErr *CLIError
		if !result.Valid {
			cliErr = &CLIError{Code: ErrCodeValidation, Message: result.Errors[0].Error()}
		}
		if err := out.Respond(result, cliErr); err != nil {
			return err
		}
	} else {
		printValidation(out, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func printValidation(out *OutputFormatter, result ValidationResult) {
	for _, w := range result.Warnings {
		out.Printf("warning: %s\n", w.Message)
	}

	if result.Valid {
		out.Printf("%s %d operation(s) valid\n", markOK, len(result.Operations))
		return
	}

	out.Printf("%s Validation failed\n\n", markFail)
	for _, e := range result.Errors {
		out.Printf("  %s\n", e.Error())
	}
}

// errNotFound marks a missing specs directory.
var errNotFound = errors.New("not found")

// loadManifests checks that dir exists and compiles its manifests.
func loadManifests(dir string) ([]*ir.OperationDef, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("specs directory %s: %w", dir, errNotFound)
		}
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", dir)
	}
	return manifest.LoadDir(dir)
}

func loadErrorCode(err error) string {
	if errors.Is(err, errNotFound) {
		return ErrCodeNotFound
	}
	return ErrCodeLoadFailed
}

func operationNames(defs []*ir.OperationDef) []string {
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
