package fleet

import (
	"sync"
	"time"
)

// Clock assigns server timestamps that never go backwards within a process,
// even if the wall clock is stepped.
type Clock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC()
	if t.Before(c.last) {
		t = c.last
	}
	c.last = t
	return t
}

// Stamp returns the caller supplied time, or the server time when at is nil.
func (c *Clock) Stamp(at *time.Time) time.Time {
	if at != nil {
		return at.UTC()
	}
	return c.Now()
}
