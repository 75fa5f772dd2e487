package engine

import (
	"sync"

	"github.com/roach88/routine/internal/ir"
)

// actionQueue is a thread-safe FIFO queue of dispatched actions.
//
// The queue is unbounded so that lifecycle goroutines and follow-up actions
// never block on a busy Run loop.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the Run loop.
type actionQueue struct {
	mu      sync.Mutex
	actions []ir.Action
	closed  bool
	signal  chan struct{} // Signals availability (buffered, size 1)
}

func newActionQueue() *actionQueue {
	return &actionQueue{
		actions: make([]ir.Action, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue adds an action to the back of the queue.
// Returns false if the queue is closed.
func (q *actionQueue) Enqueue(a ir.Action) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.actions = append(q.actions, a)

	// Non-blocking: the buffer of 1 coalesces multiple signals
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *actionQueue) TryDequeue() (ir.Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.actions) == 0 {
		return nil, false
	}

	a := q.actions[0]

	// Nil out the slot so the backing array does not retain payloads.
	q.actions[0] = nil

	if len(q.actions) == 1 {
		q.actions = q.actions[:0]
	} else {
		q.actions = q.actions[1:]
	}

	return a, true
}

// Wait returns a channel that signals when actions may be available.
// The channel is closed when the queue is closed.
func (q *actionQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *actionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.actions)
}

func (q *actionQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close signals that no more actions will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *actionQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
