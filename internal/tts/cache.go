package tts

import (
	"context"
	"fmt"
	"sync"
)

// DefaultCacheEntries bounds the audio cache when no capacity is given.
const DefaultCacheEntries = 256

// Cache wraps a Synthesizer and memoises its results keyed by text and
// role. Entries are evicted oldest-first once the capacity is reached.
// Safe for concurrent use.
type Cache struct {
	inner Synthesizer
	cap   int

	mu      sync.Mutex
	entries map[string][]byte
	order   []string
}

// NewCache returns a caching wrapper around inner holding at most capacity
// entries. A capacity of zero or less falls back to DefaultCacheEntries.
func NewCache(inner Synthesizer, capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheEntries
	}
	return &Cache{
		inner:   inner,
		cap:     capacity,
		entries: make(map[string][]byte),
	}
}

// Synthesize returns cached audio when available, otherwise delegates to
// the wrapped Synthesizer and stores the result. Errors are not cached.
func (c *Cache) Synthesize(ctx context.Context, text, role string) ([]byte, error) {
	key := fmt.Sprintf("%s\x00%s", role, text)

	c.mu.Lock()
	if audio, ok := c.entries[key]; ok {
		c.mu.Unlock()
		return audio, nil
	}
	c.mu.Unlock()

	audio, err := c.inner.Synthesize(ctx, text, role)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[key]; !ok {
		for len(c.entries) >= c.cap {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.entries[key] = audio
		c.order = append(c.order, key)
	}
	return audio, nil
}

// Clear removes every cached entry. Called when the voice or speaking-rate
// settings change, since cached audio would no longer match them.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string][]byte)
	c.order = nil
}

// Len reports the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
