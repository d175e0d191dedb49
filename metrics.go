package sendero

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector provides Prometheus metrics for the dispatch lifecycle and
// reliability layers. It is safe for concurrent use.
type MetricsCollector struct {
	sendsTotal   *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec

	retriesTotal *prometheus.CounterVec

	circuitBreakerState *prometheus.GaugeVec

	rateLimitedTotal *prometheus.CounterVec

	idempotencyHits   prometheus.Counter
	idempotencyMisses prometheus.Counter
	idempotencySize   prometheus.Gauge

	inflightCoalesced prometheus.Counter

	queueItems     *prometheus.GaugeVec
	queueProcessed *prometheus.CounterVec
}

// NewMetricsCollector creates a metrics collector on the default registerer.
func NewMetricsCollector() *MetricsCollector {
	return NewMetricsCollectorWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsCollectorWithRegistry creates a collector using the supplied
// registerer, letting tests isolate their metric state.
func NewMetricsCollectorWithRegistry(registry prometheus.Registerer) *MetricsCollector {
	return &MetricsCollector{
		sendsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendero_sends_total",
				Help: "Total number of dispatch attempts by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		sendDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sendero_send_duration_seconds",
				Help:    "End-to-end dispatch duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		retriesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendero_retries_total",
				Help: "Total number of per-provider retry attempts",
			},
			[]string{"provider"},
		),
		circuitBreakerState: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sendero_circuit_breaker_state",
				Help: "Circuit breaker state per provider (0=closed, 1=open, 2=half-open)",
			},
			[]string{"provider"},
		),
		rateLimitedTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendero_rate_limited_total",
				Help: "Sends rejected by the rate limiter, by identifier",
			},
			[]string{"identifier"},
		),
		idempotencyHits: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sendero_idempotency_hits_total",
				Help: "Sends served verbatim from the idempotency cache",
			},
		),
		idempotencyMisses: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sendero_idempotency_misses_total",
				Help: "Sends that missed the idempotency cache",
			},
		),
		idempotencySize: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "sendero_idempotency_cache_size",
				Help: "Number of records in the idempotency cache",
			},
		),
		inflightCoalesced: promauto.With(registry).NewCounter(
			prometheus.CounterOpts{
				Name: "sendero_inflight_coalesced_total",
				Help: "Concurrent identical sends coalesced onto one delivery",
			},
		),
		queueItems: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sendero_queue_items",
				Help: "Queue items by lifecycle status",
			},
			[]string{"status"},
		),
		queueProcessed: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "sendero_queue_processed_total",
				Help: "Queue items settled by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordSend records one dispatch outcome with its duration.
func (mc *MetricsCollector) RecordSend(provider, outcome string, duration time.Duration) {
	mc.sendsTotal.WithLabelValues(provider, outcome).Inc()
	mc.sendDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordRetry records one retry attempt against a provider.
func (mc *MetricsCollector) RecordRetry(provider string) {
	mc.retriesTotal.WithLabelValues(provider).Inc()
}

// RecordCircuitBreakerState updates the state gauge for a provider.
func (mc *MetricsCollector) RecordCircuitBreakerState(provider string, state CircuitState) {
	mc.circuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordRateLimited records an admission rejection for an identifier.
func (mc *MetricsCollector) RecordRateLimited(identifier string) {
	mc.rateLimitedTotal.WithLabelValues(identifier).Inc()
}

// RecordIdempotencyHit records a cache hit.
func (mc *MetricsCollector) RecordIdempotencyHit() {
	mc.idempotencyHits.Inc()
}

// RecordIdempotencyMiss records a cache miss.
func (mc *MetricsCollector) RecordIdempotencyMiss() {
	mc.idempotencyMisses.Inc()
}

// RecordIdempotencySize updates the cache size gauge.
func (mc *MetricsCollector) RecordIdempotencySize(size int) {
	mc.idempotencySize.Set(float64(size))
}

// RecordInflightCoalesced records one coalesced duplicate send.
func (mc *MetricsCollector) RecordInflightCoalesced() {
	mc.inflightCoalesced.Inc()
}

// RecordQueueItems updates the gauge for one lifecycle status.
func (mc *MetricsCollector) RecordQueueItems(status string, count int) {
	mc.queueItems.WithLabelValues(status).Set(float64(count))
}

// RecordQueueProcessed records one settled queue item.
func (mc *MetricsCollector) RecordQueueProcessed(outcome string) {
	mc.queueProcessed.WithLabelValues(outcome).Inc()
}
