package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Adapters and collaborators wrap these sentinels so
// the orchestrator can classify failures with errors.Is.
var (
	// ErrSourceUnavailable marks a transient source failure worth retrying
	// with backoff.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSourceExhausted signals the end of a source's data for this cycle.
	// Not a failure.
	ErrSourceExhausted = errors.New("source exhausted")

	// ErrSourceSkipped is returned when the circuit breaker short-circuits a
	// source for the remainder of the cycle.
	ErrSourceSkipped = errors.New("source skipped by circuit breaker")

	// ErrCycleInProgress rejects a trigger that arrives while a cycle runs.
	ErrCycleInProgress = errors.New("cycle already in progress")
)

// GenerationError marks a failed generation attempt. The job is retried in
// later cycles until the per-fingerprint cap, then the topic is abandoned.
type GenerationError struct {
	TopicKey string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate %s: %v", e.TopicKey, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// PublishError marks a publish failure after successful generation. The job
// stays succeeded-unpublished and is retried next cycle from the cached
// artifact.
type PublishError struct {
	Fingerprint string
	Err         error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s: %v", e.Fingerprint, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// FatalPipelineError aborts the whole cycle with no partial commit, e.g. when
// the state store is unreachable.
type FatalPipelineError struct {
	Stage string
	Err   error
}

func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("fatal at %s: %v", e.Stage, e.Err)
}

func (e *FatalPipelineError) Unwrap() error { return e.Err }
