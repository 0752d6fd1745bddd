package engine

import (
	"sync/atomic"
	"time"
)

// Clock is the journal's logical clock. Every processed request, accepted
// or rejected, takes the next seq. Ordering never depends on wall time.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start, for reopening an
// existing journal.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// TimeSource supplies wall time for phase checks.
type TimeSource interface {
	Now() time.Time
}

// SystemTime reads the host clock in UTC.
type SystemTime struct{}

// Now returns time.Now in UTC.
func (SystemTime) Now() time.Time {
	return time.Now().UTC()
}

// monotonic never returns a time earlier than one it already returned, so
// a host clock stepping backwards cannot reopen a closed round.
type monotonic struct {
	src  TimeSource
	last time.Time
}

func (m *monotonic) Now() time.Time {
	now := m.src.Now()
	if now.Before(m.last) {
		return m.last
	}
	m.last = now
	return now
}
