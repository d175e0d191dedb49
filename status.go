package sendero

// ProviderStatus describes one provider's health as seen by its breaker.
type ProviderStatus struct {
	Name    string              `json:"name"`
	Healthy bool                `json:"healthy"`
	Circuit CircuitBreakerState `json:"circuit"`
}

// Status is a read-only snapshot of the dispatcher for monitoring and CLI
// consumption.
type Status struct {
	Providers       []ProviderStatus `json:"providers"`
	AffinityIndex   int              `json:"affinityIndex"`
	RateRemaining   int              `json:"rateRemaining"`
	IdempotencySize int              `json:"idempotencySize"`
}

// Status reports the provider list with circuit state, the current affinity
// index, remaining default-bucket rate capacity and idempotency cache size.
func (d *Dispatcher) Status() Status {
	providers := make([]ProviderStatus, len(d.providers))
	for i, p := range d.providers {
		circuit := d.breakers[i].State()
		providers[i] = ProviderStatus{
			Name:    p.Name(),
			Healthy: circuit.State == StateClosed,
			Circuit: circuit,
		}
	}

	return Status{
		Providers:       providers,
		AffinityIndex:   int(d.affinity.Load()),
		RateRemaining:   d.limiter.Remaining(DefaultRateKey),
		IdempotencySize: d.cache.Len(),
	}
}
