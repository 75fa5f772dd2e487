package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a lifecycle test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists CUE manifest files, relative to the scenario file.
	Specs []string `yaml:"specs"`

	// InitialState seeds the state tree.
	InitialState map[string]any `yaml:"initial_state,omitempty"`

	// Stubs scripts the call outcomes of each operation, by manifest name.
	Stubs map[string][]StubOutcome `yaml:"stubs,omitempty"`

	// Flow is dispatched in order; the engine settles after each step.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state and trace.
	Assertions []Assertion `yaml:"assertions"`
}

// StubOutcome is one scripted call result. Exactly one field is set.
type StubOutcome struct {
	Data  any    // successful response body
	Error any    // response body of a recoverable failure
	Fatal string // transport failure message

	kind string
}

// UnmarshalYAML requires exactly one of data, error or fatal. A null body
// is allowed and distinct from a missing key.
func (o *StubOutcome) UnmarshalYAML(node *yaml.Node) error {
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if len(raw) != 1 {
		return fmt.Errorf("line %d: stub outcome needs exactly one of data, error, fatal", node.Line)
	}

	for key, val := range raw {
		switch key {
		case "data":
			o.Data = val
		case "error":
			o.Error = val
		case "fatal":
			msg, ok := val.(string)
			if !ok || msg == "" {
				return fmt.Errorf("line %d: fatal must be a non-empty string", node.Line)
			}
			o.Fatal = msg
		default:
			return fmt.Errorf("line %d: unknown stub outcome %q", node.Line, key)
		}
		o.kind = key
	}
	return nil
}

// FlowStep dispatches an operation or clears a key path.
type FlowStep struct {
	// Dispatch names the operation (manifest name or operation id).
	Dispatch string `yaml:"dispatch,omitempty"`

	// Args is the invocation payload.
	Args []any `yaml:"args,omitempty"`

	// Clear is a dotted key path to clear.
	Clear string `yaml:"clear,omitempty"`
}

// Assertion validates final state or the trace.
type Assertion struct {
	// Type specifies the assertion type (see Assert* constants).
	Type string `yaml:"type"`

	// Path is a dotted key path (state_equals, state_absent, error_equals).
	Path string `yaml:"path,omitempty"`

	// Operation is an operation id (loading).
	Operation string `yaml:"operation,omitempty"`

	// Value is the expected value.
	Value any `yaml:"value,omitempty"`

	// Events is the expected event type order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Event is an event type (trace_count).
	Event string `yaml:"event,omitempty"`

	// Count is the expected number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertStateEquals = "state_equals"
	AssertStateAbsent = "state_absent"
	AssertLoading     = "loading"
	AssertErrorEquals = "error_equals"
	AssertTraceOrder  = "trace_order"
	AssertTraceCount  = "trace_count"
)

// LoadScenario reads a scenario file, resolving spec paths relative to the
// file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving spec paths relative to basePath.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) && basePath != "" {
			scenario.Specs[i] = filepath.Join(basePath, specPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}

	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec file not found: %s", specPath)
		}
	}

	for i, step := range s.Flow {
		switch {
		case step.Dispatch == "" && step.Clear == "":
			return fmt.Errorf("flow[%d]: dispatch or clear is required", i)
		case step.Dispatch != "" && step.Clear != "":
			return fmt.Errorf("flow[%d]: dispatch and clear are exclusive", i)
		case step.Clear != "" && len(step.Args) > 0:
			return fmt.Errorf("flow[%d]: clear takes no args", i)
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertStateEquals, AssertStateAbsent, AssertErrorEquals:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertLoading:
		if a.Operation == "" {
			return fmt.Errorf("assertions[%d]: operation is required for loading", index)
		}
		if _, ok := a.Value.(bool); !ok {
			return fmt.Errorf("assertions[%d]: value must be true or false for loading", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
