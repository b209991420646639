package greeting

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
)

// Key identifies one pre-rendered greeting. Two tenants sharing the same
// text still get distinct entries: voice and locale shape the audio.
type Key struct {
	TenantID string
	Locale   string
	VoiceID  string
	TextHash string
}

// HashText returns the canonical hash component for greeting text.
func HashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:8])
}

// NewKey builds a cache key for a tenant's greeting configuration.
func NewKey(tenantID, locale, voiceID, text string) Key {
	return Key{
		TenantID: tenantID,
		Locale:   locale,
		VoiceID:  voiceID,
		TextHash: HashText(text),
	}
}

// Stats is the read-only view exposed to the management interface.
type Stats struct {
	Entries     int     `json:"entries"`
	Capacity    int     `json:"capacity"`
	Utilization float64 `json:"utilization"`
}

// Cache stores pre-encoded outbound frame sequences so the first utterance
// of a call needs no synthesis round trip. Shared across all call handlers;
// one mutex guards the map and the recency order.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key][][]byte
	recency  []Key // oldest first
}

func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache{
		capacity: capacity,
		entries:  make(map[Key][][]byte),
	}
}

// Get returns the cached frames for key and refreshes its recency.
func (c *Cache) Get(key Key) ([][]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	frames, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.touch(key)
	out := make([][]byte, len(frames))
	copy(out, frames)
	return out, true
}

// Put stores frames under key, evicting the least-recently-used entry when
// the cache is at capacity and key is new. Callers must not Put on synthesis
// failure; an empty sequence is treated as a failure and ignored.
func (c *Cache) Put(key Key, frames [][]byte) {
	if len(frames) == 0 {
		return
	}
	stored := make([][]byte, len(frames))
	copy(stored, frames)

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.capacity {
		oldest := c.recency[0]
		c.recency = c.recency[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = stored
	c.touch(key)
}

// InvalidateTenant removes every entry for tenantID and returns the count.
// Safe to call repeatedly; a second call returns zero.
func (c *Cache) InvalidateTenant(tenantID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	kept := c.recency[:0]
	for _, key := range c.recency {
		if key.TenantID == tenantID {
			delete(c.entries, key)
			removed++
			continue
		}
		kept = append(kept, key)
	}
	c.recency = kept
	return removed
}

// Stats reports entry count, capacity and utilization.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     len(c.entries),
		Capacity:    c.capacity,
		Utilization: float64(len(c.entries)) / float64(c.capacity),
	}
}

// touch moves key to the most-recent end. Caller holds c.mu.
func (c *Cache) touch(key Key) {
	for i, k := range c.recency {
		if k == key {
			c.recency = append(c.recency[:i], c.recency[i+1:]...)
			break
		}
	}
	c.recency = append(c.recency, key)
}
