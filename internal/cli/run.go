package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/engine"
	"github.com/roach88/routine/internal/httpapi"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/manifest"
	"github.com/roach88/routine/internal/metrics"
	"github.com/roach88/routine/internal/reducer"
	"github.com/roach88/routine/internal/routine"
	"github.com/roach88/routine/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database    string
	Dispatch    []string
	Args        string // JSON array, the payload of every dispatch
	BaseURL     string
	MetricsAddr string
	Wait        time.Duration

	// Callers overrides HTTP binding (for testing).
	Callers manifest.CallerFactory
}

// InvocationSummary describes one invocation started by run.
type InvocationSummary struct {
	ID        string `json:"id"`
	Operation string `json:"operation"`
	Seq       int64  `json:"seq"`
	Status    string `json:"status"` // success, fail, pending
}

// RunResult holds the outcome of a run.
type RunResult struct {
	Invocations []InvocationSummary `json:"invocations"`
	State       ir.Object           `json:"state"`
	Fatal       []string            `json:"fatal,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Dispatch operations against their HTTP endpoints",
		Long: `Load operation manifests, dispatch operations in order and wait for each
lifecycle to finish.

State is rebuilt from the event log first, so repeated runs against the
same --db continue where the last one stopped. With --metrics-addr the
command keeps serving Prometheus metrics until interrupted.

Examples:
  routine run ./specs --dispatch fetchTodos --base-url http://localhost:8080
  routine run ./specs --db ./routine.db --dispatch addTodo --args '[{"title":"x"}]'
  routine run ./specs --dispatch fetchTodos --metrics-addr :9090`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOperations(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (default $ROUTINE_DB, in-memory if unset)")
	cmd.Flags().StringArrayVar(&opts.Dispatch, "dispatch", nil, "operation name or id to dispatch (repeatable)")
	cmd.Flags().StringVar(&opts.Args, "args", "[]", "JSON array payload passed to each dispatch")
	cmd.Flags().StringVar(&opts.BaseURL, "base-url", "", "base URL for relative endpoints (default $ROUTINE_BASE_URL)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default $ROUTINE_METRICS_ADDR)")
	cmd.Flags().DurationVar(&opts.Wait, "wait", 2*time.Minute, "maximum time to wait for each dispatch to finish")
	_ = cmd.MarkFlagRequired("dispatch")

	return cmd
}

func runOperations(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())
	cfg := opts.Config

	payload, err := parsePayload(opts.Args)
	if err != nil {
		return out.Error(ErrCodeBadArgs, "invalid --args", err)
	}

	defs, err := loadManifests(specsDir)
	if err != nil {
		return out.Error(loadErrorCode(err), "failed to load manifests", err)
	}

	callers := opts.Callers
	if callers == nil {
		client := httpapi.NewClient(firstNonEmpty(opts.BaseURL, cfg.BaseURL), cfg.HTTPTimeout)
		callers = manifest.HTTPCallers(client)
	}
	bound, err := manifest.Bind(defs, callers)
	if err != nil {
		return out.Error(ErrCodeValidation, "failed to bind manifests", err)
	}

	ops := make([]*routine.Operation, len(opts.Dispatch))
	for i, ref := range opts.Dispatch {
		op, ok := bound.Lookup(ref)
		if !ok {
			return out.Error(ErrCodeBadArgs, fmt.Sprintf("unknown operation %q", ref), nil)
		}
		ops[i] = op
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore(firstNonEmpty(opts.Database, cfg.DB))
	if err != nil {
		return out.Error(ErrCodeStore, "failed to open event log", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing event log", "error", closeErr)
		}
	}()

	reduce := reducer.New(nil)
	initial, err := engine.Replay(ctx, st, reduce, bound.Registry)
	if err != nil {
		return out.Error(ErrCodeReplay, "failed to rebuild state from event log", err)
	}
	lastSeq, err := st.GetLastSeq(ctx)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read event log", err)
	}

	var (
		fatalMu sync.Mutex
		fatal   []string
	)
	engOpts := []engine.Option{
		engine.WithStore(st),
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithFatalHandler(func(err error) {
			slog.Error("invocation failed fatally", "error", err)
			fatalMu.Lock()
			fatal = append(fatal, err.Error())
			fatalMu.Unlock()
		}),
	}

	metricsAddr := firstNonEmpty(opts.MetricsAddr, cfg.MetricsAddr)
	metricsDone := make(chan error, 1)
	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		engOpts = append(engOpts, engine.WithMetrics(metrics.NewPrometheusRecorder(reg)))
		go func() { metricsDone <- metrics.Serve(ctx, metricsAddr, reg) }()
	}

	eng := engine.New(reduce, initial, engOpts...)
	engDone := make(chan error, 1)
	go func() { engDone <- eng.Run(ctx) }()

	dispatchErr := dispatchAll(ctx, eng, ops, payload, opts.Wait)

	if metricsAddr != "" && dispatchErr == nil {
		out.Printf("Serving metrics on %s. Press Ctrl-C to stop.\n", metricsAddr)
		select {
		case <-ctx.Done():
		case err := <-metricsDone:
			if err != nil {
				dispatchErr = fmt.Errorf("metrics server: %w", err)
			}
		}
	}

	eng.Stop()
	if err := <-engDone; err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "engine error", err)
	}
	if dispatchErr != nil {
		return WrapExitError(ExitFailure, "dispatch failed", dispatchErr)
	}

	// The run context may be cancelled by now; reads use a fresh one.
	summaries, err := summarizeInvocations(context.Background(), st, lastSeq)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read event log", err)
	}

	fatalMu.Lock()
	result := RunResult{Invocations: summaries, State: eng.State(), Fatal: fatal}
	fatalMu.Unlock()

	return outputRun(out, result)
}

// dispatchAll dispatches each operation and waits for it to settle before
// the next one.
func dispatchAll(ctx context.Context, eng *engine.Engine, ops []*routine.Operation, payload ir.Array, wait time.Duration) error {
	for _, op := range ops {
		slog.Debug("dispatching", "operation", op.ID(), "payload_len", len(payload))
		if !eng.Dispatch(op.Invoke(payload...)) {
			return fmt.Errorf("engine stopped before %s", op.ID())
		}

		waitCtx, cancel := context.WithTimeout(ctx, wait)
		err := eng.Settle(waitCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("%s did not finish: %w", op.ID(), err)
		}
	}
	return nil
}

// summarizeInvocations reports every invocation recorded after afterSeq.
func summarizeInvocations(ctx context.Context, st *store.Store, afterSeq int64) ([]InvocationSummary, error) {
	invocations, err := st.ListInvocations(ctx, "")
	if err != nil {
		return nil, err
	}

	summaries := []InvocationSummary{}
	for _, inv := range invocations {
		if inv.Seq <= afterSeq {
			continue
		}
		status, err := st.GetInvocationStatus(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, InvocationSummary{
			ID:        inv.ID,
			Operation: inv.OperationID,
			Seq:       inv.Seq,
			Status:    statusLabel(status),
		})
	}
	return summaries, nil
}

func statusLabel(st store.InvocationStatus) string {
	if st.Pending() {
		return "pending"
	}
	return st.Terminal.String()
}

func outputRun(out *OutputFormatter, result RunResult) error {
	var exitErr error
	var cliErr *CLIError
	if len(result.Fatal) > 0 {
		msg := fmt.Sprintf("%d invocation(s) failed fatally", len(result.Fatal))
		cliErr = &CLIError{Code: ErrCodeFatal, Message: msg, Details: result.Fatal}
		exitErr = NewExitError(ExitFailure, msg)
	}

	if out.JSON() {
		if err := out.Respond(result, cliErr); err != nil {
			return err
		}
		return exitErr
	}

	for _, inv := range result.Invocations {
		mark := markOK
		if inv.Status != "success" {
			mark = markFail
		}
		out.Printf("%s [%d] %s %s (%s)\n", mark, inv.Seq, inv.Operation, inv.Status, inv.ID)
	}
	for _, msg := range result.Fatal {
		out.Printf("  %s\n", msg)
	}

	state, err := ir.MarshalCanonical(result.State)
	if err != nil {
		return err
	}
	out.Printf("\nState: %s\n", state)
	return exitErr
}

// parsePayload decodes a JSON array flag value.
func parsePayload(raw string) (ir.Array, error) {
	if raw == "" {
		return ir.Array{}, nil
	}
	v, err := ir.UnmarshalValue([]byte(raw))
	if err != nil {
		return nil, err
	}
	arr, ok := v.(ir.Array)
	if !ok {
		return nil, fmt.Errorf("expected a JSON array, got %s", ir.TypeName(v))
	}
	return arr, nil
}

// openStore opens the event log at path, or an in-memory log when path is
// empty.
func openStore(path string) (*store.Store, error) {
	if path == "" {
		return store.OpenMemory()
	}
	return store.Open(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
