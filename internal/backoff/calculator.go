package backoff

import (
	"math/rand"
	"time"
)

// Calculator binds a strategy to a randomness source and a set of delay
// constants. The dispatcher and queue each own one with their own constants.
type Calculator struct {
	strategy   Strategy
	rnd        func() float64
	baseDelay  time.Duration
	maxDelay   time.Duration
	multiplier float64
	jitter     float64
}

// NewCalculator creates a calculator. A nil strategy defaults to exponential
// jitter; a nil rnd defaults to math/rand.
func NewCalculator(strategy Strategy, rnd func() float64, baseDelay, maxDelay time.Duration, multiplier, jitter float64) *Calculator {
	if strategy == nil {
		strategy = ExponentialJitterStrategy{}
	}
	if rnd == nil {
		rnd = rand.Float64
	}
	return &Calculator{
		strategy:   strategy,
		rnd:        rnd,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		multiplier: multiplier,
		jitter:     jitter,
	}
}

// Delay returns the backoff delay before retry attempt number attempt
// (1-based).
func (c *Calculator) Delay(attempt int) time.Duration {
	return c.strategy.Calculate(attempt, c.baseDelay, c.maxDelay, c.multiplier, c.jitter, c.rnd)
}
