package testfixtures

import (
	"sync/atomic"
	"time"
)

// Clock is a manually driven time source. Tests hand NowFunc to the engine,
// the ledger and the mailer so that every "now" observed in a run agrees.
type Clock struct {
	at atomic.Pointer[time.Time]
}

// NewClock starts the clock at start; a zero start means ReferenceTime.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	c := &Clock{}
	c.at.Store(&start)
	return c
}

func (c *Clock) Now() time.Time {
	return *c.at.Load()
}

// NowFunc returns time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.at.Store(&t)
}

// Advance shifts the clock by d and reports the instant it landed on.
func (c *Clock) Advance(d time.Duration) time.Time {
	for {
		prev := c.at.Load()
		next := prev.Add(d)
		if c.at.CompareAndSwap(prev, &next) {
			return next
		}
	}
}

// Days is the instant n calendar days from the clock's reading. The clock
// itself does not move.
func (c *Clock) Days(n int) time.Time {
	return c.Now().AddDate(0, 0, n)
}
