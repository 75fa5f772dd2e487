package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/routine/internal/ir"
)

// TraceSnapshot captures the complete trace and final state of a scenario.
// It is serialized as canonical JSON for deterministic comparison.
type TraceSnapshot struct {
	ScenarioName string
	Trace        []TraceEvent
	State        ir.Object
	Fatal        []string
}

// toCanonical converts the snapshot to an ir.Object for canonical JSON.
func (s *TraceSnapshot) toCanonical() ir.Object {
	trace := make(ir.Array, len(s.Trace))
	for i, event := range s.Trace {
		obj := ir.Object{
			"seq":  ir.Int(event.Seq),
			"kind": ir.String(event.Kind),
			"type": ir.String(event.Type),
		}
		setString(obj, "operation", event.Operation)
		setString(obj, "invocation", event.Invocation)
		setString(obj, "key_path", event.KeyPath)
		setString(obj, "strategy", event.Strategy)
		if len(event.Payload) > 0 {
			obj["payload"] = event.Payload
		}
		if event.Response != nil {
			obj["response"] = event.Response
		}
		if event.Error != nil {
			obj["error"] = event.Error
		}
		trace[i] = obj
	}

	out := ir.Object{
		"scenario_name": ir.String(s.ScenarioName),
		"trace":         trace,
	}
	if s.State != nil {
		out["state"] = s.State
	}
	if len(s.Fatal) > 0 {
		fatal := make(ir.Array, len(s.Fatal))
		for i, msg := range s.Fatal {
			fatal[i] = ir.String(msg)
		}
		out["fatal"] = fatal
	}
	return out
}

func setString(obj ir.Object, key, val string) {
	if val != "" {
		obj[key] = ir.String(val)
	}
}

// SnapshotJSON renders a result as the canonical JSON stored in golden files.
func SnapshotJSON(name string, result *Result) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Trace:        result.Trace,
		State:        result.State,
		Fatal:        result.Fatal,
	}
	return ir.MarshalCanonical(snapshot.toCanonical())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file, stored by default in testdata/golden/{scenario.Name}.golden.
// Extra options override the defaults.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...goldie.Option) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result, opts...); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, opts ...goldie.Option) error {
	t.Helper()

	data, err := SnapshotJSON(name, result)
	if err != nil {
		return err
	}

	g := newGoldie(t, opts...)
	g.Assert(t, name, data)
	return nil
}

func newGoldie(t *testing.T, opts ...goldie.Option) *goldie.Goldie {
	defaults := []goldie.Option{
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	}
	return goldie.New(t, append(defaults, opts...)...)
}
