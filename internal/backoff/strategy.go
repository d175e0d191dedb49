// Package backoff centralizes retry-delay calculation so the dispatcher and
// the queue share one implementation with independent constants.
package backoff

import (
	"math/rand"
	"time"
)

// Strategy defines the interface for backoff calculation algorithms.
// rnd supplies randomness in [0, 1); injecting it keeps delay computation
// deterministic under test.
type Strategy interface {
	Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64, rnd func() float64) time.Duration
}

// ExponentialJitterStrategy implements exponential backoff with uniform
// additive jitter: delay = min(base × multiplier^(attempt−1) × (1 + jitter ×
// rnd()), max). Attempt numbering starts at 1.
type ExponentialJitterStrategy struct{}

// Calculate implements the Strategy interface.
func (s ExponentialJitterStrategy) Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	// Prevent overflow for runaway attempt counters.
	if attempt > 31 {
		attempt = 31
	}
	if rnd == nil {
		rnd = rand.Float64
	}

	delay := time.Duration(float64(baseDelay) * pow(multiplier, attempt-1))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}

	jitter = clampJitter(jitter)
	if jitter > 0 {
		withJitter := time.Duration(float64(delay) * (1 + jitter*rnd()))
		if withJitter < 0 || withJitter > maxDelay {
			delay = maxDelay
		} else {
			delay = withJitter
		}
	}
	return delay
}

// DecorrelatedJitterStrategy implements decorrelated jitter per the AWS
// architecture blog: random_between(base, min(cap, base × 3^attempt)).
type DecorrelatedJitterStrategy struct{}

// Calculate implements the Strategy interface. multiplier and jitter are
// ignored; the 3x growth factor is part of the algorithm.
func (s DecorrelatedJitterStrategy) Calculate(attempt int, baseDelay, maxDelay time.Duration, multiplier, jitter float64, rnd func() float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 10 {
		attempt = 10
	}
	if rnd == nil {
		rnd = rand.Float64
	}

	base := float64(baseDelay)
	upper := base * pow(3.0, attempt)
	maxFloat := float64(maxDelay)
	if upper > maxFloat || upper < base {
		upper = maxFloat
	}
	if upper < base {
		upper = base
	}

	delay := time.Duration(base + rnd()*(upper-base))
	if delay < 0 || delay > maxDelay {
		delay = maxDelay
	}
	return delay
}

// clampJitter ensures jitter is within [0, 1].
func clampJitter(jitter float64) float64 {
	if jitter < 0 {
		return 0
	}
	if jitter > 1 {
		return 1
	}
	return jitter
}

// pow calculates base^exponent using integer exponentiation.
func pow(base float64, exponent int) float64 {
	result := 1.0
	for i := 0; i < exponent; i++ {
		result *= base
	}
	return result
}
