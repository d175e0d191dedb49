// Package sendero is a resilient dispatch layer that delivers send requests
// to one of several interchangeable backend providers:
//
//   - Retries with exponential backoff + jitter, per provider
//   - Fallback across an ordered provider list, with affinity to the last
//     provider that succeeded
//   - Circuit breaker per provider (closed / open / half-open states)
//   - Per-identifier sliding-window rate limiting
//   - Idempotency cache mapping request fingerprints to prior results
//   - Coalescing of concurrent identical in-flight sends
//   - Priority queue feeding the dispatcher under bounded concurrency
//   - Prometheus metrics and lightweight structured logging
//
// Design goals:
//   - Small surface area – functional options configure everything
//   - Safe concurrent use of a single *Dispatcher instance
//   - Providers are plain single-method implementations injected at
//     construction; no assumptions about the underlying transport
//
// Typical usage:
//
//	d := sendero.New(
//	    sendero.WithProviders(primary, backup),
//	    sendero.WithMaxRetries(3),
//	    sendero.WithRateLimit(10, time.Minute),
//	    sendero.WithIdempotencyTTL(5*time.Minute),
//	)
//	result, err := d.Send(ctx, sendero.Request{
//	    To:      "ops@example.com",
//	    Subject: "disk almost full",
//	    Body:    "/var is at 93%",
//	})
//
// All state is process-local and lost on restart; persistence, transport and
// multi-process coordination are deliberately out of scope.
package sendero
