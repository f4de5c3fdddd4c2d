package utils

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock abstracts the wall clock so auction window arithmetic and background
// loops can be driven deterministically in tests. Now is always UTC.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
}

// SystemClock returns a Clock backed by the real wall clock
func SystemClock() Clock {
	return utcClock{Clock: clockwork.NewRealClock()}
}

type utcClock struct {
	clockwork.Clock
}

func (c utcClock) Now() time.Time { return c.Clock.Now().UTC() }

// FakeClock is a manually advanced Clock. Tickers created from it fire during
// Advance and Set, with missed ticks collapsed into one like time.Ticker.
type FakeClock struct {
	*clockwork.FakeClock
}

// NewFakeClock creates a fake clock reading initial (converted to UTC).
func NewFakeClock(initial time.Time) *FakeClock {
	return &FakeClock{FakeClock: clockwork.NewFakeClockAt(initial.UTC())}
}

func (c *FakeClock) Now() time.Time { return c.FakeClock.Now().UTC() }

// Set moves the clock to t. Moving forward fires tickers whose deadline passed.
func (c *FakeClock) Set(t time.Time) {
	c.Advance(t.UTC().Sub(c.FakeClock.Now()))
}
