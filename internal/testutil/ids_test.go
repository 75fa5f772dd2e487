package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequentialGenerator_Sequence(t *testing.T) {
	g := NewSequentialGenerator("op")
	assert.Equal(t, "op-1", g.Generate())
	assert.Equal(t, "op-2", g.Generate())
}

func TestSequentialGenerator_DefaultPrefix(t *testing.T) {
	assert.Equal(t, "inv-1", NewSequentialGenerator("").Generate())
}

func TestSequentialGenerator_ThreadSafe(t *testing.T) {
	g := NewSequentialGenerator("x")
	const n = 100

	var wg sync.WaitGroup
	seen := make(chan string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen <- g.Generate()
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[string]bool{}
	for id := range seen {
		unique[id] = true
	}
	assert.Len(t, unique, n)
}
