// Package replay provides at-most-once acceptance of (window, counter)
// pairs and the sender-side counter allocator that feeds them.
package replay

import "sync"

// Guard tracks accepted message counters per window so a duplicated or
// replayed message is rejected while out-of-order delivery inside the
// retention range is tolerated.
//
// Guard state must only be mutated by messages that already passed
// AEAD verification; callers enforce that ordering.
type Guard struct {
	mu        sync.Mutex
	retention uint64
	windows   map[uint64]map[uint64]struct{}
}

// NewGuard creates a guard retaining per-window state for
// retentionWindows windows behind the current one.
func NewGuard(retentionWindows int) *Guard {
	if retentionWindows < 1 {
		retentionWindows = 1
	}
	return &Guard{
		retention: uint64(retentionWindows),
		windows:   make(map[uint64]map[uint64]struct{}),
	}
}

// Accept records (window, counter) and reports whether the message is
// fresh. It rejects windows outside [current-retention,
// current+retention] and counters already seen for that window.
// Whole windows behind the horizon are purged on every call, bounding
// memory to O(retention * messages per window).
func (g *Guard) Accept(window, counter, current uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	lo := uint64(0)
	if current > g.retention {
		lo = current - g.retention
	}
	if window < lo || window > current+g.retention {
		return false
	}

	seen, ok := g.windows[window]
	if !ok {
		seen = make(map[uint64]struct{})
		g.windows[window] = seen
	}
	if _, dup := seen[counter]; dup {
		return false
	}
	seen[counter] = struct{}{}

	for w := range g.windows {
		if w < lo {
			delete(g.windows, w)
		}
	}
	return true
}

// Seen reports whether (window, counter) has been accepted, without
// mutating state.
func (g *Guard) Seen(window, counter uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen, ok := g.windows[window]
	if !ok {
		return false
	}
	_, dup := seen[counter]
	return dup
}

// TrackedWindows returns the number of windows currently tracked.
func (g *Guard) TrackedWindows() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.windows)
}

// Reset drops all replay state.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.windows = make(map[uint64]map[uint64]struct{})
}
