package manifest

import (
	"fmt"

	"github.com/roach88/routine/internal/httpapi"
	"github.com/roach88/routine/internal/ir"
	"github.com/roach88/routine/internal/routine"
)

// CallerFactory supplies the call behind one operation definition.
type CallerFactory func(def *ir.OperationDef) (routine.Caller, error)

// HTTPCallers binds each definition's endpoint through client.
func HTTPCallers(client *httpapi.Client) CallerFactory {
	return func(def *ir.OperationDef) (routine.Caller, error) {
		if def.Endpoint == nil {
			return nil, fmt.Errorf("operation %s has no endpoint", def.Name)
		}
		return client.Caller(*def.Endpoint)
	}
}

// Bound is a set of operations built from a manifest.
type Bound struct {
	Registry *routine.Registry
	byName   map[string]*routine.Operation
	names    []string
}

// Lookup finds an operation by manifest name, then by operation id.
func (b *Bound) Lookup(ref string) (*routine.Operation, bool) {
	if op, ok := b.byName[ref]; ok {
		return op, true
	}
	return b.Registry.Get(ref)
}

// Names returns the operation names in manifest order.
func (b *Bound) Names() []string {
	return append([]string(nil), b.names...)
}

// Bind validates defs and builds an operation for each.
//
// Follow-ups are resolved by name when they fire: on_success dispatches the
// named operation with the original payload, on_fail with none.
func Bind(defs []*ir.OperationDef, callers CallerFactory) (*Bound, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}

	b := &Bound{
		Registry: &routine.Registry{},
		byName:   make(map[string]*routine.Operation, len(defs)),
	}

	for _, def := range defs {
		call, err := callers(def)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", def.Name, err)
		}
		strategy, err := ir.ParseStrategy(def.Transform)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", def.Name, err)
		}

		cfg := routine.Config{
			Prefix:     def.Prefix,
			ID:         def.ID,
			API:        call,
			ReducerKey: def.ReducerKey,
			Transform:  strategy,
		}
		if target := def.OnSuccess; target != "" {
			cfg.OnSuccess = func(payload ...ir.Value) ir.Action {
				return b.byName[target].Invoke(payload...)
			}
		}
		if target := def.OnFail; target != "" {
			cfg.OnFail = func() ir.Action {
				return b.byName[target].Invoke()
			}
		}

		op, err := routine.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("bind %s: %w", def.Name, err)
		}
		if err := b.Registry.Register(op); err != nil {
			return nil, fmt.Errorf("bind %s: %w", def.Name, err)
		}
		b.byName[def.Name] = op
		b.names = append(b.names, def.Name)
	}

	return b, nil
}
