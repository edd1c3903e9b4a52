package resilience

import (
	"time"
)

// BackoffConfig describes exponential backoff between reconnection attempts.
type BackoffConfig struct {
	Base        time.Duration // delay before the first retry
	Max         time.Duration // cap on the computed delay
	MaxAttempts int           // attempts beyond this stop silently
}

// DefaultBackoffConfig matches the transport reconnection policy: 1 s base,
// 10 s cap, 10 attempts.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Base:        1 * time.Second,
		Max:         10 * time.Second,
		MaxAttempts: 10,
	}
}

// Delay returns the backoff for a 0-indexed attempt: min(base * 2^attempt, max).
func (c BackoffConfig) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := c.Base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.Max || d <= 0 {
			return c.Max
		}
	}
	if d > c.Max {
		return c.Max
	}
	return d
}

// Exhausted reports whether a 0-indexed attempt exceeds the attempt budget.
func (c BackoffConfig) Exhausted(attempt int) bool {
	return c.MaxAttempts > 0 && attempt >= c.MaxAttempts
}
