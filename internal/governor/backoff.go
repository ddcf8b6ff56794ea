package governor

import (
	"math"
	"math/rand"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
)

// Backoff computes retry delays with exponential growth and jitter.
type Backoff struct {
	initialDelay  time.Duration
	maxDelay      time.Duration
	multiplier    float64
	jitterPercent int
}

// NewBackoff builds a calculator from retry configuration, applying sane
// defaults for unset fields.
func NewBackoff(cfg config.RetryConfig) *Backoff {
	initialMs := cfg.InitialDelayMs
	if initialMs <= 0 {
		initialMs = 500
	}
	maxMs := cfg.MaxDelayMs
	if maxMs <= 0 {
		maxMs = 8000
	}
	multiplier := cfg.Multiplier
	if multiplier < 1 {
		multiplier = 2.0
	}
	jitter := cfg.JitterPercent
	if jitter < 0 {
		jitter = 20
	}

	return &Backoff{
		initialDelay:  time.Duration(initialMs) * time.Millisecond,
		maxDelay:      time.Duration(maxMs) * time.Millisecond,
		multiplier:    multiplier,
		jitterPercent: jitter,
	}
}

// Delay returns the wait before retry number attempt (1-indexed: the delay
// after the first failed attempt is Delay(1)).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(b.initialDelay) * math.Pow(b.multiplier, float64(attempt-1))
	if delay > float64(b.maxDelay) {
		delay = float64(b.maxDelay)
	}

	if b.jitterPercent > 0 {
		jitterRange := delay * float64(b.jitterPercent) / 100.0
		delay += (rand.Float64()*2 - 1) * jitterRange
	}

	if delay < 0 {
		delay = float64(b.initialDelay)
	}

	return time.Duration(delay)
}
