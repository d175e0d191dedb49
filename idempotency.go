package sendero

import (
	"sync"
	"time"
)

// idempotencyRecord pairs a cached result with its creation time.
type idempotencyRecord struct {
	result    *DispatchResult
	createdAt time.Time
}

// IdempotencyCache maps request fingerprints to previously produced results
// so that semantically identical sends inside the TTL are served from cache
// instead of being delivered again. Expired records are evicted lazily on
// lookup; Sweep evicts them proactively and is meant to be driven by an
// external scheduler such as the Janitor. Safe for concurrent use.
type IdempotencyCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	records map[string]idempotencyRecord
	now     func() time.Time
}

// NewIdempotencyCache creates a cache whose records expire after ttl.
func NewIdempotencyCache(ttl time.Duration) *IdempotencyCache {
	return &IdempotencyCache{
		ttl:     ttl,
		records: make(map[string]idempotencyRecord),
		now:     time.Now,
	}
}

// Lookup returns the live cached result for the fingerprint, if any. An
// expired record is evicted eagerly and treated as absent.
func (c *IdempotencyCache) Lookup(fingerprint string) (*DispatchResult, bool) {
	c.mu.RLock()
	record, exists := c.records[fingerprint]
	c.mu.RUnlock()

	if !exists {
		return nil, false
	}

	if c.now().Sub(record.createdAt) > c.ttl {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Record may have
		// refreshed the entry.
		if current, ok := c.records[fingerprint]; ok && c.now().Sub(current.createdAt) > c.ttl {
			delete(c.records, fingerprint)
		}
		c.mu.Unlock()
		return nil, false
	}

	return record.result, true
}

// Record stores the result for the fingerprint, replacing any prior record.
func (c *IdempotencyCache) Record(fingerprint string, result *DispatchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[fingerprint] = idempotencyRecord{result: result, createdAt: c.now()}
}

// Sweep evicts all expired records and returns how many were removed.
func (c *IdempotencyCache) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for fingerprint, record := range c.records {
		if now.Sub(record.createdAt) > c.ttl {
			delete(c.records, fingerprint)
			removed++
		}
	}
	return removed
}

// Len returns the number of records currently held, expired or not.
func (c *IdempotencyCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}
