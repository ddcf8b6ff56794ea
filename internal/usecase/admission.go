package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

// Admission decides which ranked insights become generation jobs. Candidates
// are considered greedily in rank order: published fingerprints and topics
// with a running job are skipped, abandoned topics are dropped, and admission
// stops at the concurrency cap. Candidates passed over by the cap stay
// eligible next cycle.
type Admission struct {
	generatorVersion string
	maxConcurrent    int
	maxRetries       int
	state            ports.StateStore
	logger           *slog.Logger
}

// NewAdmission builds the admission policy.
func NewAdmission(generatorVersion string, maxConcurrent, maxRetries int, state ports.StateStore, logger *slog.Logger) *Admission {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Admission{
		generatorVersion: generatorVersion,
		maxConcurrent:    maxConcurrent,
		maxRetries:       maxRetries,
		state:            state,
		logger:           logger,
	}
}

// Plan returns the jobs to run this cycle, plus how many eligible candidates
// were deferred by the concurrency cap.
func (a *Admission) Plan(ctx context.Context, ranked []domain.Insight, published map[string]bool, runningTopics map[string]bool) ([]domain.GenerationJob, int, error) {
	jobs := make([]domain.GenerationJob, 0, a.maxConcurrent)
	deferred := 0
	admittedTopics := make(map[string]bool, a.maxConcurrent)

	for _, insight := range ranked {
		fingerprint := domain.Fingerprint(insight.TopicKey, a.generatorVersion, insight.EvidenceRefs)

		if published[fingerprint] {
			continue
		}
		if runningTopics[insight.TopicKey] || admittedTopics[insight.TopicKey] {
			continue
		}

		attempts, abandoned, err := a.state.GenerationAttempts(ctx, fingerprint)
		if err != nil {
			return nil, 0, &domain.FatalPipelineError{Stage: "scheduling", Err: err}
		}
		if abandoned || attempts >= a.maxRetries {
			a.warn("topic abandoned", "topic", insight.TopicKey, "fingerprint", fingerprint, "attempts", attempts)
			continue
		}

		if len(jobs) >= a.maxConcurrent {
			deferred++
			continue
		}

		jobs = append(jobs, domain.GenerationJob{
			ID:          uuid.New().String(),
			TopicKey:    insight.TopicKey,
			Fingerprint: fingerprint,
			Insight:     insight,
			State:       domain.JobQueued,
			CreatedAt:   time.Now().UTC(),
		})
		admittedTopics[insight.TopicKey] = true
	}

	return jobs, deferred, nil
}

func (a *Admission) warn(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Warn(msg, args...)
	}
}
