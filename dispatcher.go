package sendero

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/mail"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/senderokit/sendero/internal/backoff"
)

// Dispatcher delivers requests to one of several interchangeable providers,
// layering rate limiting, idempotency, per-provider circuit breaking, retry
// with backoff and ordered fallback. It is safe for concurrent use; all
// resilience state is owned by the instance, so independent dispatchers do
// not interact.
type Dispatcher struct {
	providers []Provider
	breakers  []*CircuitBreaker

	maxRetries        int
	baseDelay         time.Duration
	maxDelay          time.Duration
	backoffMultiplier float64
	jitter            float64
	rnd               func() float64
	backoff           *backoff.Calculator

	rateLimit       int
	rateLimitWindow time.Duration
	limiter         *RateLimiter

	idempotencyTTL time.Duration
	cache          *IdempotencyCache
	inflight       *inflightTracker

	breakerConfig CircuitBreakerConfig

	// affinity is the index of the provider that most recently succeeded.
	// New sends start iterating there. It is not moved on total failure.
	affinity atomic.Int64

	metrics *MetricsCollector
	logger  Logger

	validationError error
}

// New constructs a Dispatcher using the provided functional options. A best
// effort validation is performed; call IsValid / ValidationError for errors.
// Sending through an invalid dispatcher fails with a Validation error.
func New(options ...Option) *Dispatcher {
	d := &Dispatcher{
		maxRetries:        3,
		baseDelay:         100 * time.Millisecond,
		maxDelay:          10 * time.Second,
		backoffMultiplier: 2.0,
		jitter:            0.1,
		rnd:               rand.Float64,
		rateLimit:         100,
		rateLimitWindow:   time.Minute,
		idempotencyTTL:    5 * time.Minute,
		breakerConfig: CircuitBreakerConfig{
			FailureThreshold: 5,
			ResetTimeout:     60 * time.Second,
		},
		inflight: newInflightTracker(),
	}

	for _, option := range options {
		option(d)
	}

	d.limiter = NewRateLimiter(d.rateLimit, d.rateLimitWindow)
	d.cache = NewIdempotencyCache(d.idempotencyTTL)
	d.backoff = backoff.NewCalculator(nil, d.rnd, d.baseDelay, d.maxDelay, d.backoffMultiplier, d.jitter)

	d.breakers = make([]*CircuitBreaker, len(d.providers))
	for i := range d.providers {
		d.breakers[i] = NewCircuitBreaker(d.breakerConfig)
	}

	if err := d.validateConfiguration(); err != nil {
		d.validationError = err
	}

	return d
}

// IsValid reports whether configuration validation passed at construction.
func (d *Dispatcher) IsValid() bool {
	return d.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (d *Dispatcher) ValidationError() error {
	return d.validationError
}

// IdempotencyCache returns the dispatcher-owned cache, for wiring sweeps.
func (d *Dispatcher) IdempotencyCache() *IdempotencyCache {
	return d.cache
}

// RateRemaining reports the remaining admission capacity for an identifier.
func (d *Dispatcher) RateRemaining(identifier string) int {
	return d.limiter.Remaining(identifier)
}

// Send delivers the request through the first provider that accepts it,
// starting from the provider that most recently succeeded. Per-send controls
// ride on the context (WithIdempotencyKey, WithRateKey).
//
// Every call either returns a DispatchResult or a *DispatchError of type
// Validation, RateLimit or AllProvidersFailed.
func (d *Dispatcher) Send(ctx context.Context, req Request) (*DispatchResult, error) {
	start := time.Now()

	if d.validationError != nil {
		return nil, d.validationError
	}
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	requestID := ulid.Make().String()

	fingerprint, explicit := idempotencyKeyFromContext(ctx)
	if !explicit {
		fingerprint = Fingerprint(req)
	}

	// A live cached result is indistinguishable from a fresh send that
	// happened to reuse the outcome.
	if cached, ok := d.cache.Lookup(fingerprint); ok {
		if d.metrics != nil {
			d.metrics.RecordIdempotencyHit()
		}
		if d.logger != nil {
			d.logger.Debug("idempotency hit", "requestID", requestID, "fingerprint", fingerprint)
		}
		return cached, nil
	}
	if d.metrics != nil {
		d.metrics.RecordIdempotencyMiss()
	}

	entry, owner := d.inflight.getOrCreate(fingerprint)
	if !owner {
		if d.metrics != nil {
			d.metrics.RecordInflightCoalesced()
		}
		if d.logger != nil {
			d.logger.Debug("coalesced onto in-flight send", "requestID", requestID, "fingerprint", fingerprint)
		}
		return entry.wait(ctx)
	}

	result, err := d.dispatch(ctx, req, requestID, fingerprint)
	d.inflight.complete(fingerprint, result, err)

	if d.metrics != nil {
		outcome := "success"
		provider := "none"
		if err != nil {
			outcome = "failure"
		} else {
			provider = result.Provider
		}
		d.metrics.RecordSend(provider, outcome, time.Since(start))
		d.metrics.RecordIdempotencySize(d.cache.Len())
	}

	return result, err
}

// dispatch runs admission and the provider fallback loop for an owned send.
func (d *Dispatcher) dispatch(ctx context.Context, req Request, requestID, fingerprint string) (*DispatchResult, error) {
	rateKey, ok := rateKeyFromContext(ctx)
	if !ok {
		rateKey = req.From
	}
	if rateKey == "" {
		rateKey = DefaultRateKey
	}

	if !d.limiter.Admit(rateKey) {
		if d.metrics != nil {
			d.metrics.RecordRateLimited(rateKey)
		}
		if d.logger != nil {
			d.logger.Warn("rate limit exceeded", "requestID", requestID, "identifier", rateKey)
		}
		return nil, &DispatchError{
			Type:      ErrorTypeRateLimit,
			Message:   fmt.Sprintf("rate limit exceeded for %q", rateKey),
			RequestID: requestID,
			To:        req.To,
			Timestamp: time.Now(),
		}
	}

	startIdx := int(d.affinity.Load())
	var lastErr error

	for i := 0; i < len(d.providers); i++ {
		idx := (startIdx + i) % len(d.providers)
		provider := d.providers[idx]
		breaker := d.breakers[idx]

		result, err := breaker.Execute(ctx, func(ctx context.Context) (*DispatchResult, error) {
			return d.sendWithRetry(ctx, provider, req, requestID)
		})

		if d.metrics != nil {
			d.metrics.RecordCircuitBreakerState(provider.Name(), breaker.State().State)
		}

		if err == nil {
			d.cache.Record(fingerprint, result)
			d.affinity.Store(int64(idx))
			if d.logger != nil {
				d.logger.Info("dispatched", "requestID", requestID, "provider", provider.Name(), "messageID", result.MessageID)
			}
			return result, nil
		}

		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			// Breaker-open rejection falls back exactly like an exhausted
			// provider.
			lastErr = &DispatchError{
				Type:      ErrorTypeCircuitOpen,
				Message:   fmt.Sprintf("circuit open for provider %q", provider.Name()),
				Cause:     err,
				RequestID: requestID,
				Provider:  provider.Name(),
				Timestamp: time.Now(),
			}
		}
		if d.logger != nil {
			d.logger.Warn("provider exhausted, falling back", "requestID", requestID, "provider", provider.Name(), "error", lastErr.Error())
		}

		if ctx.Err() != nil {
			break
		}
	}

	message := "all providers failed"
	if lastErr != nil {
		message = fmt.Sprintf("all providers failed: %s", lastErr.Error())
	}
	return nil, &DispatchError{
		Type:      ErrorTypeAllProvidersFailed,
		Message:   message,
		Cause:     lastErr,
		RequestID: requestID,
		To:        req.To,
		Timestamp: time.Now(),
	}
}

// sendWithRetry attempts delivery through one provider up to maxRetries
// times with exponential backoff between attempts. The last attempt's
// failure propagates to the caller (and to the provider's breaker).
func (d *Dispatcher) sendWithRetry(ctx context.Context, provider Provider, req Request, requestID string) (*DispatchResult, error) {
	var lastErr error

	for attempt := 1; attempt <= d.maxRetries; attempt++ {
		if attempt > 1 {
			if d.metrics != nil {
				d.metrics.RecordRetry(provider.Name())
			}
			if d.logger != nil {
				d.logger.Debug("retrying provider", "requestID", requestID, "provider", provider.Name(), "attempt", attempt)
			}
		}

		result, err := provider.Send(ctx, req)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < d.maxRetries {
			if err := sleepContext(ctx, d.backoff.Delay(attempt)); err != nil {
				return nil, lastErr
			}
		}
	}

	return nil, lastErr
}

// validateRequest fails fast on malformed requests; these are never retried.
func validateRequest(req Request) error {
	var problems []string
	if req.To == "" {
		problems = append(problems, "destination is required")
	} else if _, err := mail.ParseAddress(req.To); err != nil {
		problems = append(problems, fmt.Sprintf("destination %q is not a valid address", req.To))
	}
	if req.Subject == "" {
		problems = append(problems, "subject is required")
	}
	if req.Body == "" {
		problems = append(problems, "body is required")
	}

	if len(problems) > 0 {
		return &DispatchError{
			Type:      ErrorTypeValidation,
			Message:   fmt.Sprintf("invalid request: %v", problems),
			To:        req.To,
			Timestamp: time.Now(),
		}
	}
	return nil
}

// validateConfiguration validates the dispatcher configuration and returns an
// error listing every problem found.
func (d *Dispatcher) validateConfiguration() error {
	var problems []string

	if len(d.providers) == 0 {
		problems = append(problems, "at least one provider is required")
	}
	for i, p := range d.providers {
		if p == nil {
			problems = append(problems, fmt.Sprintf("provider[%d] cannot be nil", i))
		}
	}
	if d.maxRetries < 1 {
		problems = append(problems, "maxRetries must be at least 1")
	}
	if d.baseDelay <= 0 {
		problems = append(problems, "baseDelay must be positive")
	}
	if d.maxDelay < d.baseDelay {
		problems = append(problems, "maxDelay must be >= baseDelay")
	}
	if d.backoffMultiplier <= 0 {
		problems = append(problems, "backoffMultiplier must be positive")
	}
	if d.jitter < 0 || d.jitter > 1 {
		problems = append(problems, "jitter must be between 0 and 1")
	}
	if d.rateLimit <= 0 {
		problems = append(problems, "rateLimit must be positive")
	}
	if d.rateLimitWindow <= 0 {
		problems = append(problems, "rateLimitWindow must be positive")
	}
	if d.idempotencyTTL <= 0 {
		problems = append(problems, "idempotencyTTL must be positive")
	}
	if d.breakerConfig.FailureThreshold <= 0 {
		problems = append(problems, "circuitBreakerThreshold must be positive")
	}
	if d.breakerConfig.ResetTimeout <= 0 {
		problems = append(problems, "circuitBreakerTimeout must be positive")
	}

	if len(problems) > 0 {
		return &DispatchError{
			Type:      ErrorTypeValidation,
			Message:   fmt.Sprintf("configuration validation failed: %v", problems),
			Timestamp: time.Now(),
		}
	}
	return nil
}

// sleepContext sleeps for d or until the context is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
