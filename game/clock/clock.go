package clock

import (
	"sync"
	"time"
)

// Clock reports the current simulation time.
type Clock interface {
	Now() time.Duration
}

// Sim is a manually advanced simulation clock. The zero value starts at 0.
type Sim struct {
	mu  sync.RWMutex
	now time.Duration
}

// NewSim creates a simulation clock starting at start.
func NewSim(start time.Duration) *Sim {
	return &Sim{now: start}
}

// Now returns the current simulation time.
func (c *Sim) Now() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.now
}

// Advance moves the clock forward by dt. Negative deltas are ignored.
func (c *Sim) Advance(dt time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if dt > 0 {
		c.now += dt
	}
	return c.now
}

// Set jumps the clock to t.
func (c *Sim) Set(t time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}
