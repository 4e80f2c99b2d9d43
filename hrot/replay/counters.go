package replay

import "sync"

// Counters allocates strictly increasing per-window message counters
// on the send path. Counter uniqueness within a window is what lets
// the receiver's Guard detect replays.
type Counters struct {
	mu       sync.Mutex
	counters map[uint64]uint64
}

// NewCounters creates an empty allocator.
func NewCounters() *Counters {
	return &Counters{counters: make(map[uint64]uint64)}
}

// Next returns the next counter for window, starting at 0.
func (c *Counters) Next(window uint64) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.counters[window]
	c.counters[window] = n + 1
	return n
}

// Prune drops counters for windows more than keep windows behind
// current. The sender never revisits old windows, so their counters
// are dead weight.
func (c *Counters) Prune(current, keep uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if current <= keep {
		return
	}
	lo := current - keep
	for w := range c.counters {
		if w < lo {
			delete(c.counters, w)
		}
	}
}

// Tracked returns the number of windows with live counters.
func (c *Counters) Tracked() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.counters)
}
