package store

import "sync/atomic"

// Clock is a monotonic logical clock stamping every Update with a seq.
//
// Seq values order updates deterministically, independent of wall time, so a
// replayed session produces the same sequence. Several stores may share one
// clock to get a single total order across them.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a new clock starting at a specific sequence number.
// Used by replay to continue numbering after the last logged entry.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
