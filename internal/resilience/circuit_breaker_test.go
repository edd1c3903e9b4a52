package resilience

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterMaxFailures(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)
	failure := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return failure }); !errors.Is(err, failure) {
			t.Fatalf("Call %d: expected upstream error, got %v", i, err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	if err := cb.Call(func() error {
		t.Error("Expected call to be rejected without execution")
		return nil
	}); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, time.Minute)
	failure := errors.New("flaky")

	cb.Call(func() error { return failure })
	cb.Call(func() error { return failure })
	cb.Call(func() error { return nil })
	cb.Call(func() error { return failure })
	cb.Call(func() error { return failure })

	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after interleaved success, got %v", cb.GetState())
	}
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, 10*time.Millisecond)

	cb.Call(func() error { return errors.New("down") })
	if cb.GetState() != StateOpen {
		t.Fatalf("Expected open state, got %v", cb.GetState())
	}

	time.Sleep(20 * time.Millisecond)

	for i := 0; i < 3; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("Probe %d: expected success, got %v", i, err)
		}
	}
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after recovery, got %v", cb.GetState())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)
	cb.Call(func() error { return errors.New("down") })
	cb.Reset()
	if cb.GetState() != StateClosed {
		t.Errorf("Expected closed state after Reset, got %v", cb.GetState())
	}
}
