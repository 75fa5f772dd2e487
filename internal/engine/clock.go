package engine

import "sync/atomic"

// Clock is the monotonic logical clock used to order events.
//
// Every invocation and every event applied by the engine is stamped with a
// strictly increasing seq from this clock. Wall time is never used for
// ordering.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though only the Run loop calls Next in practice.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock whose next value is start+1.
// Used to append to an existing event log without reusing seqs.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
