package engine

import (
	"sync"

	"github.com/roach88/routine/internal/ir"
)

// EventHandler observes lifecycle events of one kind after they are applied.
type EventHandler func(ev ir.Event)

// ActionHandler observes every processed action with the resulting state.
type ActionHandler func(action ir.Action, state ir.Object)

// bus fans processed actions out to subscribers. Handlers run on the Run
// goroutine, in subscription order, and must not block.
type bus struct {
	mu     sync.RWMutex
	nextID int
	byKind map[ir.Kind][]subscription[EventHandler]
	all    []subscription[ActionHandler]
}

type subscription[H any] struct {
	id int
	fn H
}

func newBus() *bus {
	return &bus{byKind: make(map[ir.Kind][]subscription[EventHandler])}
}

func (b *bus) subscribe(kind ir.Kind, fn EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.byKind[kind] = append(b.byKind[kind], subscription[EventHandler]{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.byKind[kind] = removeSub(b.byKind[kind], id)
	}
}

func (b *bus) subscribeAll(fn ActionHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.all = append(b.all, subscription[ActionHandler]{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.all = removeSub(b.all, id)
	}
}

func (b *bus) publish(action ir.Action, state ir.Object) {
	b.mu.RLock()
	var kindSubs []subscription[EventHandler]
	ev, isEvent := action.(ir.Event)
	if isEvent {
		kindSubs = b.byKind[ev.Kind]
	}
	allSubs := b.all
	b.mu.RUnlock()

	for _, s := range kindSubs {
		s.fn(ev)
	}
	for _, s := range allSubs {
		s.fn(action, state)
	}
}

// removeSub returns a new slice without id, so publishers holding the old
// slice are unaffected.
func removeSub[H any](subs []subscription[H], id int) []subscription[H] {
	out := make([]subscription[H], 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}
