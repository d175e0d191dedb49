package sendero

import (
	"context"
	"sync"
)

// inflightEntry represents one in-flight send shared between callers.
type inflightEntry struct {
	mu     sync.Mutex
	result *DispatchResult
	err    error
	done   chan struct{}
}

// inflightTracker coalesces concurrent sends that share a fingerprint. The
// idempotency cache only covers completed sends; without the tracker two
// concurrent identical sends would both miss the cache and double-deliver.
type inflightTracker struct {
	mu      sync.Mutex
	entries map[string]*inflightEntry
}

func newInflightTracker() *inflightTracker {
	return &inflightTracker{
		entries: make(map[string]*inflightEntry),
	}
}

// getOrCreate returns the entry for the fingerprint. The second return value
// is true when the caller created the entry and owns the actual send.
func (t *inflightTracker) getOrCreate(fingerprint string) (*inflightEntry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, exists := t.entries[fingerprint]; exists {
		return entry, false
	}

	entry := &inflightEntry{done: make(chan struct{})}
	t.entries[fingerprint] = entry
	return entry, true
}

// complete finalizes the entry, releases waiters and removes the tracking
// record. Later sends with the same fingerprint hit the idempotency cache.
func (t *inflightTracker) complete(fingerprint string, result *DispatchResult, err error) {
	t.mu.Lock()
	entry, exists := t.entries[fingerprint]
	delete(t.entries, fingerprint)
	t.mu.Unlock()

	if !exists {
		return
	}

	entry.mu.Lock()
	entry.result = result
	entry.err = err
	entry.mu.Unlock()
	close(entry.done)
}

// wait blocks until the owning send completes or the context cancels.
func (e *inflightEntry) wait(ctx context.Context) (*DispatchResult, error) {
	select {
	case <-e.done:
		e.mu.Lock()
		result, err := e.result, e.err
		e.mu.Unlock()
		return result, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
