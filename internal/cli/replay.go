package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/engine"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/manifest"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
)

// errReplayCall is returned by the callers bound during replay. Replay only
// folds persisted events and never calls an endpoint.
var errReplayCall = errors.New("replay does not call endpoints")

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database  string
	SpecsDir  string
	ShowState bool
}

// ReplayResult holds the replay result.
type ReplayResult struct {
	Events        int       `json:"events"`
	Invocations   int       `json:"invocations"`
	Pending       int       `json:"pending"`
	StateHash     string    `json:"state_hash"`
	Deterministic bool      `json:"deterministic"`
	State         ir.Object `json:"state,omitempty"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Rebuild state from an event log and verify determinism",
		Long: `Fold every persisted event into a fresh state tree, twice, and compare
the state hashes.

The manifests are needed to rebind the strategy of each operation; no
endpoint is called.

Exit codes:
  0 - Replay is deterministic
  1 - The two replays produced different states
  2 - Command error (database not found, manifests invalid, etc.)

Examples:
  routine replay --db ./routine.db --specs ./specs
  routine replay --db ./routine.db --specs ./specs --state --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (default $ROUTINE_DB)")
	cmd.Flags().StringVar(&opts.SpecsDir, "specs", "", "directory of operation manifests (required)")
	cmd.Flags().BoolVar(&opts.ShowState, "state", false, "print the rebuilt state")
	_ = cmd.MarkFlagRequired("specs")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	defs, err := loadManifests(opts.SpecsDir)
	if err != nil {
		return out.Error(loadErrorCode(err), "failed to load manifests", err)
	}
	bound, err := manifest.Bind(defs, func(*ir.OperationDef) (routine.Caller, error) {
		return func(context.Context, ...ir.Value) (*routine.Response, error) {
			return nil, errReplayCall
		}, nil
	})
	if err != nil {
		return out.Error(ErrCodeValidation, "failed to bind manifests", err)
	}

	st, err := openExistingStore(firstNonEmpty(opts.Database, opts.Config.DB))
	if err != nil {
		return out.Error(ErrCodeStore, "failed to open event log", err)
	}
	defer st.Close()

	reduce := reducer.New(nil)
	first, err := engine.Replay(ctx, st, reduce, bound.Registry)
	if err != nil {
		return out.Error(ErrCodeReplay, "first replay failed", err)
	}
	second, err := engine.Replay(ctx, st, reduce, bound.Registry)
	if err != nil {
		return out.Error(ErrCodeReplay, "second replay failed", err)
	}

	hash1, err := ir.StateHash(first)
	if err != nil {
		return out.Error(ErrCodeReplay, "failed to hash state", err)
	}
	hash2, err := ir.StateHash(second)
	if err != nil {
		return out.Error(ErrCodeReplay, "failed to hash state", err)
	}

	events, err := st.CountEvents(ctx)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to count events", err)
	}
	invocations, err := st.ListInvocations(ctx, "")
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read invocations", err)
	}
	pending, err := st.FindPendingInvocations(ctx)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read invocations", err)
	}

	result := ReplayResult{
		Events:        events,
		Invocations:   len(invocations),
		Pending:       len(pending),
		StateHash:     hash1,
		Deterministic: hash1 == hash2,
	}
	if opts.ShowState {
		result.State = first
	}

	return outputReplay(out, result)
}

func outputReplay(out *OutputFormatter, result ReplayResult) error {
	var cliErr *CLIError
	var exitErr error
	if !result.Deterministic {
		cliErr = &CLIError{Code: ErrCodeReplay, Message: "determinism verification failed"}
		exitErr = NewExitError(ExitFailure, "determinism verification failed")
	}

	if out.JSON() {
		if err := out.Respond(result, cliErr); err != nil {
			return err
		}
		return exitErr
	}

	out.Printf("Replayed %d event(s) from %d invocation(s), %d pending\n",
		result.Events, result.Invocations, result.Pending)
	out.Printf("State hash: %s\n", result.StateHash)
	if result.State != nil {
		data, err := ir.MarshalCanonical(result.State)
		if err != nil {
			return err
		}
		out.Printf("State: %s\n", data)
	}

	if result.Deterministic {
		out.Printf("%s Replay verified deterministic\n", markOK)
	} else {
		out.Printf("%s Determinism verification failed\n", markFail)
	}
	return exitErr
}
