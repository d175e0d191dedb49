package sendero

import (
	"errors"
	"fmt"
	"time"
)

// Error type constants used in DispatchError.Type.
const (
	ErrorTypeValidation         = "Validation"
	ErrorTypeRateLimit          = "RateLimit"
	ErrorTypeProvider           = "Provider"
	ErrorTypeCircuitOpen        = "CircuitOpen"
	ErrorTypeAllProvidersFailed = "AllProvidersFailed"
)

// Sentinel errors for common failure scenarios.
var (
	// ErrCircuitOpen is returned when a provider's circuit breaker rejects
	// the call without running it.
	ErrCircuitOpen = errors.New("sendero: circuit open")

	// ErrRateLimited is returned when admission is denied by the rate
	// limiter before any provider is touched.
	ErrRateLimited = errors.New("sendero: rate limited")

	// ErrAllProvidersFailed is returned when every configured provider
	// exhausted its retry budget.
	ErrAllProvidersFailed = errors.New("sendero: all providers failed")
)

// DispatchError is the structured error returned by the Dispatcher. Its Type
// field carries the taxonomy; Cause carries the last underlying error.
type DispatchError struct {
	Type      string
	Message   string
	Cause     error
	RequestID string
	To        string
	Provider  string
	Attempt   int
	Timestamp time.Time
}

// Error implements the error interface.
func (e *DispatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *DispatchError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is. A *DispatchError target matches on
// Type; the sentinel errors match their corresponding types.
func (e *DispatchError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*DispatchError); ok {
		return e.Type == targetErr.Type
	}
	switch target {
	case ErrCircuitOpen:
		return e.Type == ErrorTypeCircuitOpen
	case ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ErrAllProvidersFailed:
		return e.Type == ErrorTypeAllProvidersFailed
	}
	return false
}

// IsTransient reports whether an error represents a transient failure that
// might succeed on a later send. Validation failures are permanent; provider,
// breaker and rate-limit failures are transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrRateLimited) {
		return true
	}

	var dispatchErr *DispatchError
	if errors.As(err, &dispatchErr) {
		switch dispatchErr.Type {
		case ErrorTypeProvider, ErrorTypeCircuitOpen, ErrorTypeRateLimit, ErrorTypeAllProvidersFailed:
			return true
		default:
			return false
		}
	}

	return false
}
