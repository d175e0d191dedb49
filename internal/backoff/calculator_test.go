package backoff

import (
	"testing"
	"time"
)

func TestCalculatorDelay(t *testing.T) {
	c := NewCalculator(nil, func() float64 { return 0 }, 100*time.Millisecond, time.Hour, 2.0, 0.1)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
	}
	for _, tt := range tests {
		if got := c.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d): expected %v, got %v", tt.attempt, tt.want, got)
		}
	}
}

func TestCalculatorDefaults(t *testing.T) {
	c := NewCalculator(nil, nil, 10*time.Millisecond, time.Second, 2.0, 0.1)

	// Defaulted strategy and rnd still produce delays within bounds.
	got := c.Delay(2)
	lower := 20 * time.Millisecond
	upper := 22 * time.Millisecond
	if got < lower || got > upper {
		t.Errorf("Delay(2)=%v outside [%v, %v]", got, lower, upper)
	}
}
