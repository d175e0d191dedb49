package backoff

import (
	"testing"
	"time"
)

func TestExponentialJitterBounds(t *testing.T) {
	s := ExponentialJitterStrategy{}
	base := 100 * time.Millisecond
	max := time.Hour

	for attempt := 1; attempt <= 6; attempt++ {
		lower := time.Duration(float64(base) * pow(2.0, attempt-1))
		upper := time.Duration(float64(lower) * 1.1)

		atMin := s.Calculate(attempt, base, max, 2.0, 0.1, func() float64 { return 0 })
		if atMin != lower {
			t.Errorf("attempt %d with rnd=0: expected %v, got %v", attempt, lower, atMin)
		}

		atMax := s.Calculate(attempt, base, max, 2.0, 0.1, func() float64 { return 1 })
		if atMax != upper {
			t.Errorf("attempt %d with rnd=1: expected %v, got %v", attempt, upper, atMax)
		}
	}
}

func TestExponentialJitterCap(t *testing.T) {
	s := ExponentialJitterStrategy{}

	got := s.Calculate(10, time.Second, 5*time.Second, 2.0, 0.1, func() float64 { return 1 })
	if got != 5*time.Second {
		t.Errorf("Expected delay capped at maxDelay, got %v", got)
	}
}

func TestExponentialJitterZeroJitter(t *testing.T) {
	s := ExponentialJitterStrategy{}

	got := s.Calculate(3, 100*time.Millisecond, time.Hour, 2.0, 0, func() float64 { return 1 })
	if got != 400*time.Millisecond {
		t.Errorf("Expected pure exponential delay 400ms, got %v", got)
	}
}

func TestExponentialJitterClampsAttempt(t *testing.T) {
	s := ExponentialJitterStrategy{}

	// Attempt numbers below 1 behave as the first attempt.
	got := s.Calculate(0, 100*time.Millisecond, time.Hour, 2.0, 0, nil)
	if got != 100*time.Millisecond {
		t.Errorf("Expected base delay for attempt<1, got %v", got)
	}

	// Runaway attempt counters do not overflow; they cap at maxDelay.
	got = s.Calculate(1000, 100*time.Millisecond, time.Minute, 2.0, 0, nil)
	if got != time.Minute {
		t.Errorf("Expected maxDelay for huge attempt, got %v", got)
	}
}

func TestDecorrelatedJitterBounds(t *testing.T) {
	s := DecorrelatedJitterStrategy{}
	base := 100 * time.Millisecond
	max := time.Minute

	for attempt := 1; attempt <= 5; attempt++ {
		got := s.Calculate(attempt, base, max, 0, 0, func() float64 { return 0.5 })
		if got < base || got > max {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, got, base, max)
		}
	}
}
