package sendero

import (
	"context"
	"time"
)

// Request is a caller-supplied send request. It is treated as immutable once
// submitted; the dispatcher never mutates it.
type Request struct {
	// To is the destination address. Required, must be a syntactically
	// valid address.
	To string `json:"to" yaml:"to"`

	// Subject is a short summary line. Required.
	Subject string `json:"subject" yaml:"subject"`

	// Body is the message payload. Required.
	Body string `json:"body" yaml:"body"`

	// From identifies the sender. Optional; when set it participates in the
	// request fingerprint and is the default rate-limiting identifier.
	From string `json:"from,omitempty" yaml:"from,omitempty"`

	// Metadata carries free-form fields passed through to providers. It does
	// not participate in the fingerprint.
	Metadata map[string]string `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// DispatchResult is the outcome of a successful send. Within the idempotency
// TTL, a given fingerprint produces exactly one DispatchResult; repeated sends
// return the cached value verbatim.
type DispatchResult struct {
	Success   bool      `json:"success"`
	MessageID string    `json:"messageId"`
	Provider  string    `json:"provider"`
	Timestamp time.Time `json:"timestamp"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
}

// Provider is the outbound delivery capability consumed by the Dispatcher.
// Implementations must be safe for concurrent use. The dispatcher makes no
// assumptions about the underlying transport.
type Provider interface {
	// Name identifies the provider in results, metrics and status reports.
	Name() string

	// Send delivers the request or returns an error. Transient errors are
	// retried by the dispatcher; the provider should not retry internally.
	Send(ctx context.Context, req Request) (*DispatchResult, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context, req Request) (*DispatchResult, error)
}

func (p ProviderFunc) Name() string { return p.ProviderName }

func (p ProviderFunc) Send(ctx context.Context, req Request) (*DispatchResult, error) {
	return p.Fn(ctx, req)
}

// Context keys for per-send controls.
type contextKey string

const (
	idempotencyKeyKey contextKey = "sendero_idempotency_key"
	rateKeyKey        contextKey = "sendero_rate_key"
)

// WithIdempotencyKey returns a context carrying an explicit idempotency key,
// overriding the fingerprint computed from the request fields.
func WithIdempotencyKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, idempotencyKeyKey, key)
}

// WithRateKey returns a context carrying an explicit rate-limiting identifier,
// overriding the request's From field.
func WithRateKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, rateKeyKey, key)
}

func idempotencyKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(idempotencyKeyKey).(string)
	return key, ok && key != ""
}

func rateKeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(rateKeyKey).(string)
	return key, ok && key != ""
}
