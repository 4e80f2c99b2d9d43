// Package keycache memoizes derived window keys with bounded retention.
package keycache

import (
	"sync"

	"github.com/zfifteen/hrot/hrot/crypto"
)

type entryKey struct {
	role   crypto.Role
	window uint64
}

// Cache holds derived keys for windows near the current one. Entries
// outside [current-retention, current+retention] are evicted on every
// insertion, and key bytes are overwritten before release.
//
// A Cache covers one channel; channels get independent caches so they
// never contend on a shared lock.
type Cache struct {
	mu        sync.Mutex
	retention uint64
	keys      map[entryKey][]byte
}

// New creates a cache retaining keys within retention windows of the
// current window, per role.
func New(retentionWindows int) *Cache {
	if retentionWindows < 1 {
		retentionWindows = 1
	}
	return &Cache{
		retention: uint64(retentionWindows),
		keys:      make(map[entryKey][]byte),
	}
}

// Get returns the cached key for (role, window) if present. The
// returned slice stays owned by the cache and may be zeroed on
// eviction; callers use it immediately and must not retain it.
func (c *Cache) Get(role crypto.Role, window uint64) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key, ok := c.keys[entryKey{role, window}]
	return key, ok
}

// Put stores a derived key and evicts every entry outside the
// retention range around current.
func (c *Cache) Put(role crypto.Role, window uint64, key []byte, current uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys[entryKey{role, window}] = key
	c.evictLocked(current)
}

// Purge evicts entries outside the retention range around current
// without inserting anything.
func (c *Cache) Purge(current uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evictLocked(current)
}

func (c *Cache) evictLocked(current uint64) {
	lo := uint64(0)
	if current > c.retention {
		lo = current - c.retention
	}
	hi := current + c.retention
	for k, key := range c.keys {
		if k.window < lo || k.window > hi {
			crypto.Zero(key)
			delete(c.keys, k)
		}
	}
}

// Len returns the number of cached keys.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.keys)
}

// Zeroize overwrites and drops every cached key. Must be called during
// session teardown.
func (c *Cache) Zeroize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, key := range c.keys {
		crypto.Zero(key)
		delete(c.keys, k)
	}
}
