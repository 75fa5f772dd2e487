package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/reducer"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s", event.Seq, event.Type)
			if event.Invocation != "" {
				fmt.Fprintf(&buf, " (%s)", event.Invocation)
			}
			buf.WriteByte('\n')
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns the failure
// messages. An empty slice means all assertions held.
func EvaluateAssertions(state ir.Object, trace []TraceEvent, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluateAssertion(state, trace, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func evaluateAssertion(state ir.Object, trace []TraceEvent, a Assertion) error {
	switch a.Type {
	case AssertStateEquals:
		return assertStateEquals(state, a)
	case AssertStateAbsent:
		return assertStateAbsent(state, a)
	case AssertLoading:
		return assertLoading(state, a)
	case AssertErrorEquals:
		return assertErrorEquals(state, a)
	case AssertTraceOrder:
		return assertTraceOrder(trace, a)
	case AssertTraceCount:
		return assertTraceCount(trace, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertStateEquals compares the value at a.Path with a.Value. A YAML null
// expects an explicit Null, not a missing key.
func assertStateEquals(state ir.Object, a Assertion) error {
	return compareAt(AssertStateEquals, a, func(path ir.KeyPath) (ir.Value, bool) {
		return reducer.ValueAt(state, path)
	})
}

// assertErrorEquals compares the error recorded for a.Path with a.Value.
func assertErrorEquals(state ir.Object, a Assertion) error {
	return compareAt(AssertErrorEquals, a, func(path ir.KeyPath) (ir.Value, bool) {
		return reducer.ErrorAt(state, path)
	})
}

func compareAt(kind string, a Assertion, lookup func(ir.KeyPath) (ir.Value, bool)) error {
	expected, err := ir.FromAny(a.Value)
	if err != nil {
		return fmt.Errorf("%s: invalid value: %w", kind, err)
	}

	actual, ok := lookup(ir.ParseKeyPath(a.Path))
	if !ok {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s = %s", a.Path, render(expected)),
			Actual:   "not set",
		}
	}
	if !ir.Equal(actual, expected) {
		return &AssertionError{
			Type:     kind,
			Expected: fmt.Sprintf("%s = %s", a.Path, render(expected)),
			Actual:   fmt.Sprintf("%s = %s", a.Path, render(actual)),
		}
	}
	return nil
}

// assertStateAbsent checks that nothing is stored at a.Path.
func assertStateAbsent(state ir.Object, a Assertion) error {
	actual, ok := reducer.ValueAt(state, ir.ParseKeyPath(a.Path))
	if ok {
		return &AssertionError{
			Type:     AssertStateAbsent,
			Expected: fmt.Sprintf("%s not set", a.Path),
			Actual:   fmt.Sprintf("%s = %s", a.Path, render(actual)),
		}
	}
	return nil
}

// assertLoading checks an operation's loading flag. An operation that never
// requested counts as not loading.
func assertLoading(state ir.Object, a Assertion) error {
	want, _ := a.Value.(bool)
	got := reducer.IsLoading(state, a.Operation)
	if got != want {
		return &AssertionError{
			Type:     AssertLoading,
			Expected: fmt.Sprintf("%s loading = %t", a.Operation, want),
			Actual:   fmt.Sprintf("%s loading = %t", a.Operation, got),
		}
	}
	return nil
}

// assertTraceOrder checks if event types appear in the specified order.
// Events don't need to be consecutive (intervening events are allowed), and
// repeated types match successive occurrences.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next < len(a.Events) && event.Type == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}

	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: strings.Join(a.Events, " -> "),
		Actual:   fmt.Sprintf("%q not found after %s", a.Events[next], describePrefix(a.Events[:next])),
		Trace:    trace,
	}
}

func describePrefix(matched []string) string {
	if len(matched) == 0 {
		return "start of trace"
	}
	return strings.Join(matched, " -> ")
}

// assertTraceCount checks that an event type appears exactly a.Count times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type == a.Event {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Event),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// render formats a value as canonical JSON for messages.
func render(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("<%s>", ir.TypeName(v))
	}
	return string(data)
}
