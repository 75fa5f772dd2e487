// Package cli implements the routine command-line tool.
package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is loaded from the environment before any subcommand runs.
	// Subcommands fall back to it when a flag is unset.
	Config config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the routine CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "routine",
		Short: "routine - declarative async lifecycle operations",
		Long: `Run declarative async operations through a request/success/fail lifecycle.

Operations are declared in CUE manifests. Every lifecycle event is folded
into a state tree and persisted to a SQLite event log that can be traced
and replayed.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}

			cfg, err := config.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load configuration", err)
			}
			opts.Config = cfg

			setupLogging(cmd.ErrOrStderr(), cfg, opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// setupLogging installs the default slog handler on w. --verbose forces
// debug level; otherwise the configured level applies.
func setupLogging(w io.Writer, cfg config.Config, verbose bool) {
	level, err := cfg.SlogLevel()
	if err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.JSONLogs() {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}
