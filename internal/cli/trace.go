package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database   string
	Operation  string
	Invocation string
	Kinds      []string
	Limit      int
}

// TraceEvent represents a single event in the trace timeline.
type TraceEvent struct {
	ID         string   `json:"id"`
	Seq        int64    `json:"seq"`
	Kind       string   `json:"kind"`
	Type       string   `json:"type"`
	Operation  string   `json:"operation,omitempty"`
	Invocation string   `json:"invocation,omitempty"`
	KeyPath    string   `json:"key_path,omitempty"`
	Payload    ir.Array `json:"payload,omitempty"`
	Response   ir.Value `json:"response,omitempty"`
	Error      ir.Value `json:"error,omitempty"`
	Strategy   string   `json:"strategy,omitempty"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Events      int `json:"events"`
	Invocations int `json:"invocations"`
	Pending     int `json:"pending"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Timeline []TraceEvent `json:"timeline"`
	Pending  []string     `json:"pending,omitempty"`
	Stats    TraceStats   `json:"stats"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the lifecycle events in an event log",
		Long: `Print persisted lifecycle events in seq order.

Events can be narrowed to one operation, one invocation or a set of kinds
(trigger, request, success, fail, clear). Invocations that never reached
success or fail are listed as pending; in a closed log these usually hit a
fatal transport error.

Examples:
  routine trace --db ./routine.db
  routine trace --db ./routine.db --operation todos/FETCH --kind fail
  routine trace --db ./routine.db --invocation 0190c3a2-... --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite event log (default $ROUTINE_DB)")
	cmd.Flags().StringVar(&opts.Operation, "operation", "", "only events of this operation id")
	cmd.Flags().StringVar(&opts.Invocation, "invocation", "", "only events of this invocation")
	cmd.Flags().StringSliceVar(&opts.Kinds, "kind", nil, "only events of these kinds")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events (0 for all)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := context.Background()
	out := newFormatter(opts.RootOptions, cmd.OutOrStdout())

	filter := store.EventFilter{
		OperationID:  opts.Operation,
		InvocationID: opts.Invocation,
		Limit:        opts.Limit,
	}
	for _, k := range opts.Kinds {
		kind, err := ir.ParseKind(k)
		if err != nil {
			return out.Error(ErrCodeBadArgs, "invalid --kind", err)
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	st, err := openExistingStore(firstNonEmpty(opts.Database, opts.Config.DB))
	if err != nil {
		return out.Error(ErrCodeStore, "failed to open event log", err)
	}
	defer st.Close()

	records, err := st.ReadEvents(ctx, filter)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read events", err)
	}
	invocations, err := st.ListInvocations(ctx, opts.Operation)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read invocations", err)
	}
	pending, err := st.FindPendingInvocations(ctx)
	if err != nil {
		return out.Error(ErrCodeStore, "failed to read invocations", err)
	}

	result := TraceResult{Timeline: make([]TraceEvent, 0, len(records))}
	for _, rec := range records {
		result.Timeline = append(result.Timeline, toTraceEvent(rec))
	}
	for _, inv := range pending {
		if opts.Operation != "" && inv.OperationID != opts.Operation {
			continue
		}
		if opts.Invocation != "" && inv.ID != opts.Invocation {
			continue
		}
		result.Pending = append(result.Pending, inv.ID)
	}
	result.Stats = TraceStats{
		Events:      len(result.Timeline),
		Invocations: len(invocations),
		Pending:     len(result.Pending),
	}

	if out.JSON() {
		return out.Respond(result, nil)
	}
	return outputTraceText(out, result)
}

func toTraceEvent(rec store.EventRecord) TraceEvent {
	ev := rec.Event
	return TraceEvent{
		ID:         rec.ID,
		Seq:        ev.Seq,
		Kind:       ev.Kind.String(),
		Type:       ev.Type,
		Operation:  ev.OperationID,
		Invocation: ev.InvocationID,
		KeyPath:    ev.KeyPath.String(),
		Payload:    ev.Payload,
		Response:   ev.Response,
		Error:      ev.Error,
		Strategy:   rec.StrategyLabel,
	}
}

func outputTraceText(out *OutputFormatter, result TraceResult) error {
	if len(result.Timeline) == 0 {
		out.Printf("No events found.\n")
		return nil
	}

	for _, ev := range result.Timeline {
		var detail []string
		if ev.KeyPath != "" {
			detail = append(detail, "at "+ev.KeyPath)
		}
		if ev.Strategy != "" {
			detail = append(detail, "via "+ev.Strategy)
		}
		if ev.Response != nil {
			detail = append(detail, "response="+renderValue(ev.Response))
		}
		if ev.Error != nil {
			detail = append(detail, "error="+renderValue(ev.Error))
		}
		out.Printf("[%d] %-8s %s", ev.Seq, ev.Kind, ev.Type)
		if ev.Invocation != "" {
			out.Printf(" (%s)", ev.Invocation)
		}
		if len(detail) > 0 {
			out.Printf(" %s", strings.Join(detail, " "))
		}
		out.Printf("\n")
	}

	out.Printf("\n%d event(s), %d invocation(s), %d pending\n",
		result.Stats.Events, result.Stats.Invocations, result.Stats.Pending)
	for _, id := range result.Pending {
		out.Printf("  pending: %s\n", id)
	}
	return nil
}

// renderValue formats a value as canonical JSON, truncated for display.
func renderValue(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "<" + ir.TypeName(v) + ">"
	}
	const maxLen = 80
	if len(data) > maxLen {
		return string(data[:maxLen]) + "..."
	}
	return string(data)
}

// openExistingStore opens an event log that must already exist. Opening a
// missing path would silently create an empty log.
func openExistingStore(path string) (*store.Store, error) {
	if path == "" {
		return nil, fmt.Errorf("no event log: pass --db or set ROUTINE_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}
