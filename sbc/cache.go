package sbc

import "sync"

// StatusCache holds the last observed outcome per host for display. It is
// advisory only; callers wanting truth must query the hosts.
type StatusCache struct {
	mu   sync.RWMutex
	last map[string]Outcome
}

// NewStatusCache creates an empty cache.
func NewStatusCache() *StatusCache {
	return &StatusCache{last: make(map[string]Outcome)}
}

// Record stores the outcome as the latest for its host.
func (c *StatusCache) Record(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.last[o.Host] = o
}

// Get returns the last outcome for a host, if any.
func (c *StatusCache) Get(host string) (Outcome, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	o, ok := c.last[host]
	return o, ok
}
