package routine

import (
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/routine/internal/ir"
)

// Registry indexes operations by id. It is safe for concurrent use.
//
// Replay uses it to rebind custom strategies, which cannot be persisted.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewRegistry creates a registry holding ops.
func NewRegistry(ops ...*Operation) (*Registry, error) {
	r := &Registry{ops: make(map[string]*Operation, len(ops))}
	for _, op := range ops {
		if err := r.Register(op); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds op. Two operations may not share an id, since they would
// share a loading flag.
func (r *Registry) Register(op *Operation) error {
	if op == nil {
		return &ConfigurationError{Field: "operation", Message: "operation is nil"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ops == nil {
		r.ops = make(map[string]*Operation)
	}
	if existing, ok := r.ops[op.id]; ok {
		return &ConfigurationError{
			Prefix:  op.prefix,
			Field:   "id",
			Message: fmt.Sprintf("operation id %q already registered by %q", op.id, existing.prefix),
		}
	}
	r.ops[op.id] = op
	return nil
}

// Get returns the operation with the given id.
func (r *Registry) Get(id string) (*Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[id]
	return op, ok
}

// List returns all operations sorted by id.
func (r *Registry) List() []*Operation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Operation, 0, len(r.ops))
	for _, op := range r.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Strategy returns the strategy of the operation with the given id.
func (r *Registry) Strategy(id string) (ir.Strategy, bool) {
	op, ok := r.Get(id)
	if !ok {
		return ir.Strategy{}, false
	}
	return op.strategy, true
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
