// Package testutil provides deterministic collaborators for tests and the
// scenario harness.
package testutil

import (
	"fmt"
	"sync"
)

// SequentialGenerator generates ids "<prefix>-1", "<prefix>-2", ...
//
// This enables deterministic test execution and golden snapshot comparison.
// The same scenario with a fresh SequentialGenerator produces byte-identical
// event logs.
//
// Unlike engine.FixedGenerator it never runs out.
//
// Thread-safety: SequentialGenerator is safe for concurrent use.
type SequentialGenerator struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialGenerator creates a generator. An empty prefix becomes "inv".
func NewSequentialGenerator(prefix string) *SequentialGenerator {
	if prefix == "" {
		prefix = "inv"
	}
	return &SequentialGenerator{prefix: prefix}
}

// Generate returns the next id.
//
// Implements engine.IDGenerator.
func (g *SequentialGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
