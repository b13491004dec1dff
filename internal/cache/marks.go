package cache

import (
	"sync"

	"github.com/ctrue/dcs-connect/pkg/dcs"
)

// MarkCache tracks map marks observed on the event stream for the current
// connection session.
type MarkCache struct {
	mu    sync.RWMutex
	marks map[uint32]dcs.MarkEvent
}

// NewMarkCache creates a new MarkCache
func NewMarkCache() *MarkCache {
	return &MarkCache{
		marks: make(map[uint32]dcs.MarkEvent),
	}
}

// Get retrieves a mark by id
func (c *MarkCache) Get(id uint32) (dcs.MarkEvent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.marks[id]
	return m, ok
}

// Set stores a mark by id
func (c *MarkCache) Set(m dcs.MarkEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks[m.ID] = m
}

// Delete removes a mark by id
func (c *MarkCache) Delete(id uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.marks, id)
}

// Marks returns a point-in-time copy of all known marks.
func (c *MarkCache) Marks() []dcs.MarkEvent {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]dcs.MarkEvent, 0, len(c.marks))
	for _, m := range c.marks {
		out = append(out, m)
	}
	return out
}

// Reset clears all marks from the cache
func (c *MarkCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.marks = make(map[uint32]dcs.MarkEvent)
}
