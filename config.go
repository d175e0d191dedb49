package sendero

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the externally loaded configuration consumed by New via
// FromConfig. Durations are strings in time.ParseDuration syntax ("250ms",
// "1m"). Zero fields keep their defaults.
type Config struct {
	MaxRetries              int           `yaml:"max_retries"`
	BaseDelay               string        `yaml:"base_delay"`
	MaxDelay                string        `yaml:"max_delay"`
	RateLimit               int           `yaml:"rate_limit"`
	RateLimitWindow         string        `yaml:"rate_limit_window"`
	IdempotencyTTL          string        `yaml:"idempotency_ttl"`
	CircuitBreakerThreshold int           `yaml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   string        `yaml:"circuit_breaker_timeout"`
	Providers               []string      `yaml:"providers"`
	Queue                   QueueSettings `yaml:"queue"`
}

// QueueSettings configures the queue from the same file.
type QueueSettings struct {
	Interval       string `yaml:"interval"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	MaxAttempts    int    `yaml:"max_attempts"`
	RetryBaseDelay string `yaml:"retry_base_delay"`
	RetryMaxDelay  string `yaml:"retry_max_delay"`
	Retention      string `yaml:"retention"`
}

// DefaultConfig returns a Config populated with the library defaults. It is
// the canonical source of truth for default values.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:              3,
		BaseDelay:               "100ms",
		MaxDelay:                "10s",
		RateLimit:               100,
		RateLimitWindow:         "1m",
		IdempotencyTTL:          "5m",
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   "1m",
		Queue: QueueSettings{
			Interval:       "1s",
			MaxConcurrency: 5,
			MaxAttempts:    3,
			RetryBaseDelay: "1s",
			RetryMaxDelay:  "5m",
			Retention:      "24h",
		},
	}
}

// LoadConfig reads a YAML config file over the defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field ranges and duration syntax, reporting the first
// problem found.
func (c *Config) Validate() error {
	if c.MaxRetries < 1 {
		return fmt.Errorf("max_retries must be at least 1")
	}
	if c.RateLimit < 1 {
		return fmt.Errorf("rate_limit must be at least 1")
	}
	if c.CircuitBreakerThreshold < 1 {
		return fmt.Errorf("circuit_breaker_threshold must be at least 1")
	}
	if c.Queue.MaxConcurrency < 1 {
		return fmt.Errorf("queue.max_concurrency must be at least 1")
	}
	if c.Queue.MaxAttempts < 1 {
		return fmt.Errorf("queue.max_attempts must be at least 1")
	}

	durations := map[string]string{
		"base_delay":              c.BaseDelay,
		"max_delay":               c.MaxDelay,
		"rate_limit_window":       c.RateLimitWindow,
		"idempotency_ttl":         c.IdempotencyTTL,
		"circuit_breaker_timeout": c.CircuitBreakerTimeout,
		"queue.interval":          c.Queue.Interval,
		"queue.retry_base_delay":  c.Queue.RetryBaseDelay,
		"queue.retry_max_delay":   c.Queue.RetryMaxDelay,
		"queue.retention":         c.Queue.Retention,
	}
	for field, raw := range durations {
		if _, err := parseDuration(field, raw); err != nil {
			return err
		}
	}
	return nil
}

// Options maps the config onto dispatcher options, resolving provider names
// against the injected implementations. Order follows the config list.
func (c *Config) Options(available map[string]Provider) ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	providers := make([]Provider, 0, len(c.Providers))
	for _, name := range c.Providers {
		p, ok := available[name]
		if !ok {
			return nil, fmt.Errorf("config names unknown provider %q", name)
		}
		providers = append(providers, p)
	}

	baseDelay, _ := parseDuration("base_delay", c.BaseDelay)
	maxDelay, _ := parseDuration("max_delay", c.MaxDelay)
	window, _ := parseDuration("rate_limit_window", c.RateLimitWindow)
	ttl, _ := parseDuration("idempotency_ttl", c.IdempotencyTTL)
	breakerTimeout, _ := parseDuration("circuit_breaker_timeout", c.CircuitBreakerTimeout)

	return []Option{
		WithProviders(providers...),
		WithMaxRetries(c.MaxRetries),
		WithBaseDelay(baseDelay),
		WithMaxDelay(maxDelay),
		WithRateLimit(c.RateLimit, window),
		WithIdempotencyTTL(ttl),
		WithCircuitBreaker(CircuitBreakerConfig{
			FailureThreshold: c.CircuitBreakerThreshold,
			ResetTimeout:     breakerTimeout,
		}),
	}, nil
}

// QueueOptions maps the queue section onto queue options.
func (c *Config) QueueOptions() ([]QueueOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	interval, _ := parseDuration("queue.interval", c.Queue.Interval)
	retryBase, _ := parseDuration("queue.retry_base_delay", c.Queue.RetryBaseDelay)
	retryMax, _ := parseDuration("queue.retry_max_delay", c.Queue.RetryMaxDelay)
	retention, _ := parseDuration("queue.retention", c.Queue.Retention)

	return []QueueOption{
		WithQueueInterval(interval),
		WithQueueConcurrency(c.Queue.MaxConcurrency),
		WithQueueMaxAttempts(c.Queue.MaxAttempts),
		WithQueueRetryDelay(retryBase, retryMax),
		WithQueueRetention(retention),
	}, nil
}

func parseDuration(field, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", field, raw, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: duration must be positive", field)
	}
	return d, nil
}
