package sendero

import (
	"time"
)

// Option configures a Dispatcher at construction time.
type Option func(*Dispatcher)

// WithProviders sets the ordered provider list tried during fallback.
func WithProviders(providers ...Provider) Option {
	return func(d *Dispatcher) {
		d.providers = providers
	}
}

// WithMaxRetries sets the number of delivery attempts per provider.
func WithMaxRetries(n int) Option {
	return func(d *Dispatcher) {
		d.maxRetries = n
	}
}

// WithBaseDelay sets the first retry delay.
func WithBaseDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.baseDelay = delay
	}
}

// WithMaxDelay caps the retry delay.
func WithMaxDelay(delay time.Duration) Option {
	return func(d *Dispatcher) {
		d.maxDelay = delay
	}
}

// WithBackoffMultiplier sets the exponential growth factor between retries.
func WithBackoffMultiplier(multiplier float64) Option {
	return func(d *Dispatcher) {
		d.backoffMultiplier = multiplier
	}
}

// WithJitter sets the jitter factor for backoff (0.0 to 1.0).
func WithJitter(jitter float64) Option {
	return func(d *Dispatcher) {
		if jitter < 0 {
			jitter = 0
		}
		if jitter > 1 {
			jitter = 1
		}
		d.jitter = jitter
	}
}

// WithRandomSource sets the randomness source used for jitter, letting tests
// pin delay computation.
func WithRandomSource(rnd func() float64) Option {
	return func(d *Dispatcher) {
		if rnd != nil {
			d.rnd = rnd
		}
	}
}

// WithRateLimit sets the per-identifier admission budget within the window.
func WithRateLimit(limit int, window time.Duration) Option {
	return func(d *Dispatcher) {
		d.rateLimit = limit
		d.rateLimitWindow = window
	}
}

// WithIdempotencyTTL sets how long a dispatched result deduplicates repeat
// sends of the same fingerprint.
func WithIdempotencyTTL(ttl time.Duration) Option {
	return func(d *Dispatcher) {
		d.idempotencyTTL = ttl
	}
}

// WithCircuitBreaker sets the per-provider circuit breaker configuration.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(d *Dispatcher) {
		d.breakerConfig = config
	}
}

// WithMetrics enables Prometheus metrics on the default registerer.
func WithMetrics() Option {
	return func(d *Dispatcher) {
		d.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector.
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(d *Dispatcher) {
		d.metrics = collector
	}
}

// WithLogger sets the logger. Without one the dispatcher is silent.
func WithLogger(logger Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSimpleLogger enables logging with a plain console logger.
func WithSimpleLogger() Option {
	return func(d *Dispatcher) {
		d.logger = NewSimpleLogger()
	}
}
