package gpio

import (
	"sync/atomic"
	"time"

	"github.com/sweeney/buttond/internal/logic"
)

// SystemClock ticks in milliseconds from its creation, using the monotonic
// clock. The count wraps like any logic.Millis.
type SystemClock struct {
	start time.Time
}

// NewSystemClock starts a clock at zero.
func NewSystemClock() *SystemClock {
	return &SystemClock{start: time.Now()}
}

// Now returns the ticks since the clock was created.
func (c *SystemClock) Now() logic.Millis {
	return logic.Millis(uint64(time.Since(c.start).Milliseconds()))
}

// FakeClock is a manually driven Clock for tests. Safe for concurrent use.
type FakeClock struct {
	now atomic.Uint32
}

// NewFakeClock creates a FakeClock at start.
func NewFakeClock(start logic.Millis) *FakeClock {
	c := &FakeClock{}
	c.now.Store(uint32(start))
	return c
}

// Now returns the current fake tick.
func (c *FakeClock) Now() logic.Millis {
	return logic.Millis(c.now.Load())
}

// Set moves the clock to t.
func (c *FakeClock) Set(t logic.Millis) {
	c.now.Store(uint32(t))
}

// Advance moves the clock forward by d ticks and returns the new tick.
func (c *FakeClock) Advance(d logic.Millis) logic.Millis {
	return logic.Millis(c.now.Add(uint32(d)))
}
