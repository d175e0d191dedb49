package sendero

import (
	"sync"
	"time"
)

// DefaultRateKey is the shared bucket used when a caller supplies no
// rate-limiting identifier.
const DefaultRateKey = "default"

// RateLimiter is a per-identifier sliding-window rate limiter. Each
// identifier gets its own window of admission timestamps; identifiers do not
// interact and there is no global token count.
type RateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	windows map[string][]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a rate limiter admitting up to limit sends per
// identifier within the trailing window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:   limit,
		window:  window,
		windows: make(map[string][]time.Time),
		now:     time.Now,
	}
}

// Admit reports whether a send for the given identifier is admitted, and if
// so records it. An empty identifier falls back to DefaultRateKey so
// unlabelled callers share one bucket.
func (rl *RateLimiter) Admit(identifier string) bool {
	if identifier == "" {
		identifier = DefaultRateKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.pruneLocked(identifier, now)
	if len(recent) >= rl.limit {
		return false
	}

	rl.windows[identifier] = append(recent, now)
	return true
}

// Remaining reports how many admissions are left in the current window for
// the identifier without consuming one.
func (rl *RateLimiter) Remaining(identifier string) int {
	if identifier == "" {
		identifier = DefaultRateKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	recent := rl.pruneLocked(identifier, rl.now())
	remaining := rl.limit - len(recent)
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// Reset clears the admission history for one identifier.
func (rl *RateLimiter) Reset(identifier string) {
	if identifier == "" {
		identifier = DefaultRateKey
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.windows, identifier)
}

// pruneLocked drops timestamps older than the window, persists the pruned
// slice, and returns it. Caller must hold rl.mu.
func (rl *RateLimiter) pruneLocked(identifier string, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	stamps := rl.windows[identifier]

	kept := stamps[:0]
	for _, ts := range stamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	if len(kept) == 0 {
		delete(rl.windows, identifier)
		return nil
	}
	rl.windows[identifier] = kept
	return kept
}
