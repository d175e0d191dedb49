package sendero

import (
	"context"
	"sync"
	"time"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

// String returns the canonical lower-case state name.
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig holds circuit breaker configuration.
type CircuitBreakerConfig struct {
	// FailureThreshold is the consecutive-failure count that trips the
	// breaker open.
	FailureThreshold int

	// ResetTimeout is how long the breaker stays open before a single
	// half-open probe is allowed through.
	ResetTimeout time.Duration
}

// CircuitBreaker gates calls to a single provider. After FailureThreshold
// consecutive failures it rejects calls for ResetTimeout, then lets exactly
// one probe through; the probe's outcome closes or re-opens the circuit.
// Safe for concurrent use.
type CircuitBreaker struct {
	mu            sync.Mutex
	config        CircuitBreakerConfig
	state         CircuitState
	failures      int
	nextAttempt   time.Time
	probeInFlight bool
	now           func() time.Time
}

// CircuitBreakerState is a read-only snapshot of a breaker.
type CircuitBreakerState struct {
	State           CircuitState `json:"state"`
	FailureCount    int          `json:"failureCount"`
	NextAttemptTime time.Time    `json:"nextAttemptTime"`
}

// NewCircuitBreaker creates a circuit breaker, applying defaults for zero
// config fields.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 60 * time.Second
	}

	return &CircuitBreaker{
		config: config,
		state:  StateClosed,
		now:    time.Now,
	}
}

// Execute runs op under the breaker. When the circuit is open (or a half-open
// probe is already in flight) op never runs and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) (*DispatchResult, error)) (*DispatchResult, error) {
	if !cb.allow() {
		return nil, ErrCircuitOpen
	}

	result, err := op(ctx)
	if err != nil {
		cb.recordFailure()
		return nil, err
	}

	cb.recordSuccess()
	return result, nil
}

// State returns a snapshot of the breaker's current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return CircuitBreakerState{
		State:           cb.state,
		FailureCount:    cb.failures,
		NextAttemptTime: cb.nextAttempt,
	}
}

// allow reports whether a call may proceed, transitioning Open → HalfOpen
// once the reset timeout has elapsed. Only one half-open probe is ever in
// flight; concurrent callers are rejected as if still open.
func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Before(cb.nextAttempt) {
			return false
		}
		cb.state = StateHalfOpen
		cb.probeInFlight = true
		return true
	case StateHalfOpen:
		if cb.probeInFlight {
			return false
		}
		cb.probeInFlight = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.state = StateClosed
		cb.failures = 0
		cb.probeInFlight = false
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.FailureThreshold {
			cb.state = StateOpen
			cb.nextAttempt = cb.now().Add(cb.config.ResetTimeout)
		}
	case StateHalfOpen:
		cb.failures++
		cb.state = StateOpen
		cb.nextAttempt = cb.now().Add(cb.config.ResetTimeout)
		cb.probeInFlight = false
	}
}
