package ir

import "fmt"

// StrategyName names one of the built-in mutation strategies.
type StrategyName string

// Built-in mutation strategies.
const (
	StrategyReplace              StrategyName = "replace"
	StrategyClear                StrategyName = "clear"
	StrategyAppend               StrategyName = "append"
	StrategyRemove               StrategyName = "remove"
	StrategyRemoveByID           StrategyName = "removeById"
	StrategyUpdateByIDAndReplace StrategyName = "updateByIdAndReplace"
	StrategyUpdateByIDAndChange  StrategyName = "updateByIdAndChange"

	// StrategyCustom marks a caller-supplied function.
	StrategyCustom StrategyName = "custom"
)

// strategyAliases maps accepted spellings to canonical names.
// "concat" is the historical name of append.
var strategyAliases = map[string]StrategyName{
	"replace":              StrategyReplace,
	"clear":                StrategyClear,
	"append":               StrategyAppend,
	"concat":               StrategyAppend,
	"remove":               StrategyRemove,
	"removeById":           StrategyRemoveByID,
	"updateByIdAndReplace": StrategyUpdateByIDAndReplace,
	"updateByIdAndChange":  StrategyUpdateByIDAndChange,
}

// CustomFunc is caller-defined merge logic. Its result is written verbatim;
// returning nil erases the slot.
type CustomFunc func(response, current Value, payload Array) Value

// Strategy describes how a response combines with the value at a key path.
// It is a closed sum: either a built-in Named strategy or Custom(fn).
// The zero Strategy is invalid.
type Strategy struct {
	name  StrategyName
	label string
	fn    CustomFunc
}

// Named returns a built-in strategy. Unknown names produce a strategy that
// fails Validate.
func Named(name StrategyName) Strategy {
	return Strategy{name: name}
}

// Custom wraps a caller-supplied function. The label identifies the function
// in logs and in the persisted event log.
func Custom(label string, fn CustomFunc) Strategy {
	return Strategy{name: StrategyCustom, label: label, fn: fn}
}

// ParseStrategy resolves a strategy name, accepting the "concat" alias.
func ParseStrategy(s string) (Strategy, error) {
	name, ok := strategyAliases[s]
	if !ok {
		return Strategy{}, fmt.Errorf("unknown strategy %q", s)
	}
	return Named(name), nil
}

// Name returns the canonical strategy name (StrategyCustom for functions).
func (s Strategy) Name() StrategyName { return s.name }

// Label returns the custom function label, empty for built-ins.
func (s Strategy) Label() string { return s.label }

// Func returns the custom function, nil for built-ins.
func (s Strategy) Func() CustomFunc { return s.fn }

// IsCustom reports whether the strategy wraps a caller function.
func (s Strategy) IsCustom() bool { return s.name == StrategyCustom }

// IsZero reports whether the strategy was never set.
func (s Strategy) IsZero() bool { return s.name == "" }

// Is reports whether s is the named built-in strategy.
func (s Strategy) Is(name StrategyName) bool { return s.name == name }

// Validate checks that the strategy is a known built-in or a custom function.
func (s Strategy) Validate() error {
	switch s.name {
	case "":
		return fmt.Errorf("strategy is required")
	case StrategyCustom:
		if s.fn == nil {
			return fmt.Errorf("custom strategy %q has no function", s.label)
		}
		return nil
	case StrategyReplace, StrategyClear, StrategyAppend, StrategyRemove,
		StrategyRemoveByID, StrategyUpdateByIDAndReplace, StrategyUpdateByIDAndChange:
		return nil
	default:
		return fmt.Errorf("unknown strategy %q", s.name)
	}
}

// String renders built-ins by name and custom strategies as "custom:<label>".
func (s Strategy) String() string {
	if s.IsCustom() {
		return string(StrategyCustom) + ":" + s.label
	}
	return string(s.name)
}
