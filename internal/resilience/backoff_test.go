package resilience

import (
	"testing"
	"time"
)

func TestBackoffDelay(t *testing.T) {
	cfg := DefaultBackoffConfig()

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // capped
		{9, 10 * time.Second},
		{-1, 1 * time.Second},
	}

	for _, tt := range tests {
		if got := cfg.Delay(tt.attempt); got != tt.expected {
			t.Errorf("Delay(%d): expected %v, got %v", tt.attempt, tt.expected, got)
		}
	}
}

func TestBackoffExhausted(t *testing.T) {
	cfg := DefaultBackoffConfig()

	if cfg.Exhausted(9) {
		t.Error("Expected attempt 9 within budget")
	}
	if !cfg.Exhausted(10) {
		t.Error("Expected attempt 10 exhausted")
	}

	unlimited := BackoffConfig{Base: time.Second, Max: time.Second}
	if unlimited.Exhausted(1000) {
		t.Error("Expected no exhaustion with zero MaxAttempts")
	}
}
