package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

// Trigger wires the interval driver to the pipeline. An on-demand run and a
// scheduled run share the same code path.
type Trigger struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger
}

// NewTrigger returns a helper to start/stop recurring cycles.
func NewTrigger(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Trigger {
	return &Trigger{driver: driver, pipeline: pipeline, logger: logger}
}

// Start registers the pipeline with the provided scheduler driver.
func (t *Trigger) Start(ctx context.Context) error {
	if t.driver == nil || t.pipeline == nil {
		return nil
	}

	job := func(fired time.Time) {
		if _, err := t.pipeline.RunCycle(ctx, fired); err != nil {
			if errors.Is(err, domain.ErrCycleInProgress) {
				t.warn("trigger refused, cycle still running", "fired", fired.UTC().Format(time.RFC3339))
				return
			}
			t.warn("cycle failed", "error", err)
		}
	}

	return t.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler driver.
func (t *Trigger) Stop(ctx context.Context) error {
	if t.driver == nil {
		return nil
	}
	return t.driver.Stop(ctx)
}

func (t *Trigger) warn(msg string, args ...any) {
	if t.logger != nil {
		t.logger.Warn(msg, args...)
	}
}
