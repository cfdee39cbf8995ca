package runtime

import "sync/atomic"

// Clock stamps dispatches with a strictly increasing sequence number.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations), though
// only the Run loop calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
