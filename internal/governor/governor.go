// Package governor bounds how hard the pipeline drives external sources:
// a per-source token bucket, capped exponential backoff on transient
// failures, and a per-cycle circuit breaker.
package governor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

// Governor wraps every source adapter call with the reliability policy.
type Governor struct {
	limiters    sync.Map // source_id -> *rate.Limiter
	limit       rate.Limit
	burst       int
	backoff     *Backoff
	breaker     *Breaker
	maxAttempts int
	logger      *slog.Logger
}

// New builds a governor from configuration.
func New(cfg config.GovernorConfig, logger *slog.Logger) *Governor {
	requests := cfg.Rate.Requests
	if requests <= 0 {
		requests = 4
	}
	perSecond := float64(requests) / cfg.Rate.Interval().Seconds()

	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}

	return &Governor{
		limit:       rate.Limit(perSecond),
		burst:       requests,
		backoff:     NewBackoff(cfg.Retry),
		breaker:     NewBreaker(cfg.Breaker.Threshold),
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ResetCycle clears breaker state so every source gets a fresh probe.
func (g *Governor) ResetCycle() {
	g.breaker.Reset()
}

// SourceSkipped reports whether the breaker has opened for the source this
// cycle.
func (g *Governor) SourceSkipped(sourceID string) bool {
	return g.breaker.IsTripped(sourceID)
}

// Execute runs call under the reliability policy for the source: waits for a
// rate token, retries transient failures with backoff up to the attempt cap,
// and short-circuits once the breaker is open.
func (g *Governor) Execute(ctx context.Context, sourceID string, call func(context.Context) error) error {
	if g.breaker.IsTripped(sourceID) {
		return fmt.Errorf("source %s: %w", sourceID, domain.ErrSourceSkipped)
	}

	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if err := g.limiter(sourceID).Wait(ctx); err != nil {
			return fmt.Errorf("rate wait for %s: %w", sourceID, err)
		}

		err := call(ctx)
		if err == nil || errors.Is(err, domain.ErrSourceExhausted) {
			g.breaker.RecordSuccess(sourceID)
			return err
		}

		lastErr = err
		tripped := g.breaker.RecordFailure(sourceID)
		g.debug("source call failed",
			"source", sourceID, "attempt", attempt, "tripped", tripped, "error", err)
		if tripped {
			return fmt.Errorf("source %s: %w (last error: %v)", sourceID, domain.ErrSourceSkipped, lastErr)
		}

		if attempt < g.maxAttempts {
			if err := sleep(ctx, g.backoff.Delay(attempt)); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("source %s: retries exhausted: %w", sourceID, lastErr)
}

func (g *Governor) limiter(sourceID string) *rate.Limiter {
	if limiter, ok := g.limiters.Load(sourceID); ok {
		return limiter.(*rate.Limiter)
	}

	created := rate.NewLimiter(g.limit, g.burst)
	actual, _ := g.limiters.LoadOrStore(sourceID, created)
	return actual.(*rate.Limiter)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Governor) debug(msg string, args ...any) {
	if g.logger != nil {
		g.logger.Debug(msg, args...)
	}
}
