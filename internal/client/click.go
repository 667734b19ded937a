package client

import (
	"sync"
	"time"
)

// DoubleClickWindow: two clicks on the same element within this count as a double click
const DoubleClickWindow = 300 * time.Millisecond

// ClickTracker: session local click history keyed by element id. Never sent anywhere.
type ClickTracker struct {
	last   map[string]time.Time
	window time.Duration
	mu     sync.Mutex
}

func NewClickTracker() *ClickTracker {
	return &ClickTracker{
		last:   make(map[string]time.Time),
		window: DoubleClickWindow,
	}
}

// Click: records a click at t and reports whether it completes a double click
func (c *ClickTracker) Click(elementID string, t time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev, ok := c.last[elementID]
	if ok && t.Sub(prev) < c.window {
		delete(c.last, elementID)
		return true
	}
	c.last[elementID] = t
	return false
}

// Forget: drops history for an element that went away
func (c *ClickTracker) Forget(elementID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.last, elementID)
}
