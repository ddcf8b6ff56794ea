package usecase

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/extract"
	"github.com/AdityaJorim007/swift-2026-course/internal/governor"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

// CycleState names the orchestrator's position inside a cycle.
type CycleState string

const (
	StateIdle          CycleState = "IDLE"
	StateCollecting    CycleState = "COLLECTING"
	StateExtracting    CycleState = "EXTRACTING"
	StateScoring       CycleState = "SCORING"
	StateScheduling    CycleState = "SCHEDULING"
	StateExecuting     CycleState = "EXECUTING"
	StateCheckpointing CycleState = "CHECKPOINTING"
)

// PipelineDeps wires all collaborators into the orchestrator.
type PipelineDeps struct {
	Adapters     []ports.SourceAdapter
	Governor     *governor.Governor
	Extractor    *extract.Extractor
	Insights     ports.InsightStore
	State        ports.StateStore
	Generator    ports.Generator
	Publisher    ports.Publisher
	Admission    *Admission
	Logger       *slog.Logger
	CycleTimeout time.Duration
	TopN         int
	MinSignal    float64
	MaxJobs      int
}

// Pipeline drives one full cycle: collect, extract, score, schedule,
// execute, checkpoint. Only one cycle may run at a time; a trigger arriving
// mid-cycle is refused.
type Pipeline struct {
	adapters     []ports.SourceAdapter
	governor     *governor.Governor
	extractor    *extract.Extractor
	insights     ports.InsightStore
	state        ports.StateStore
	generator    ports.Generator
	publisher    ports.Publisher
	admission    *Admission
	logger       *slog.Logger
	cycleTimeout time.Duration
	topN         int
	minSignal    float64
	maxJobs      int

	cycleMu sync.Mutex

	mu            sync.Mutex
	cycleState    CycleState
	runningTopics map[string]bool

	now func() time.Time
}

// NewPipeline constructs the orchestrator.
func NewPipeline(deps PipelineDeps) *Pipeline {
	topN := deps.TopN
	if topN <= 0 {
		topN = 5
	}
	maxJobs := deps.MaxJobs
	if maxJobs <= 0 {
		maxJobs = 1
	}
	timeout := deps.CycleTimeout
	if timeout <= 0 {
		timeout = 20 * time.Minute
	}

	return &Pipeline{
		adapters:      deps.Adapters,
		governor:      deps.Governor,
		extractor:     deps.Extractor,
		insights:      deps.Insights,
		state:         deps.State,
		generator:     deps.Generator,
		publisher:     deps.Publisher,
		admission:     deps.Admission,
		logger:        deps.Logger,
		cycleTimeout:  timeout,
		topN:          topN,
		minSignal:     deps.MinSignal,
		maxJobs:       maxJobs,
		cycleState:    StateIdle,
		runningTopics: make(map[string]bool),
		now:           time.Now,
	}
}

// WithClock overrides the pipeline's clock; tests use this.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// State returns the orchestrator's current cycle state.
func (p *Pipeline) State() CycleState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cycleState
}

// RunningTopics snapshots the topics with a job currently executing.
func (p *Pipeline) RunningTopics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	topics := make([]string, 0, len(p.runningTopics))
	for topic := range p.runningTopics {
		topics = append(topics, topic)
	}
	return topics
}

// RunCycle executes one full pipeline cycle and returns its summary. A cycle
// already in progress causes domain.ErrCycleInProgress; a fatal error aborts
// with no checkpoint so the next cycle resumes from the last committed state.
func (p *Pipeline) RunCycle(ctx context.Context, trigger time.Time) (domain.CycleSummary, error) {
	if !p.cycleMu.TryLock() {
		return domain.CycleSummary{}, domain.ErrCycleInProgress
	}
	defer p.cycleMu.Unlock()
	defer p.setState(StateIdle)

	ctx, cancel := context.WithTimeout(ctx, p.cycleTimeout)
	defer cancel()

	cycleID := uuid.New().String()
	startedAt := p.now().UTC()
	logger := p.componentLogger().With("cycle", cycleID)
	logger.Info("cycle started", "trigger", trigger.UTC().Format(time.RFC3339))

	p.governor.ResetCycle()

	var summary domain.CycleSummary

	// COLLECTING
	p.setState(StateCollecting)
	items, cursors, err := p.collect(ctx, logger, &summary)
	if err != nil {
		return summary, p.abort(logger, "collecting", err)
	}
	summary.ItemsFetched = len(items)

	// EXTRACTING
	p.setState(StateExtracting)
	candidates := p.extractor.Extract(items)

	// SCORING
	p.setState(StateScoring)
	for _, candidate := range candidates {
		if _, err := p.insights.Upsert(ctx, candidate); err != nil {
			return summary, p.abort(logger, "scoring", err)
		}
	}
	summary.InsightsFound = len(candidates)

	// SCHEDULING
	p.setState(StateScheduling)
	published, err := p.republishPending(ctx, logger, &summary)
	if err != nil {
		return summary, p.abort(logger, "scheduling", err)
	}

	ranked, err := p.insights.TopN(ctx, p.topN, p.minSignal, p.now())
	if err != nil {
		return summary, p.abort(logger, "scheduling", err)
	}

	jobs, deferred, err := p.admission.Plan(ctx, ranked, published, p.snapshotRunning())
	if err != nil {
		return summary, p.abort(logger, "scheduling", err)
	}
	summary.JobsSkipped += deferred

	// EXECUTING
	p.setState(StateExecuting)
	cyclePublished := p.execute(ctx, logger, jobs, &summary)

	if ctx.Err() != nil {
		// The cycle deadline hit; partial results are discarded.
		return summary, p.abort(logger, "executing", ctx.Err())
	}

	// CHECKPOINTING
	p.setState(StateCheckpointing)
	checkpoint := domain.CycleCheckpoint{
		CycleID:     cycleID,
		StartedAt:   startedAt,
		CompletedAt: p.now().UTC(),
		Cursors:     cursors,
		Published:   cyclePublished,
		Summary:     summary,
	}
	if err := p.state.CommitCheckpoint(ctx, checkpoint); err != nil {
		return summary, p.abort(logger, "checkpointing", err)
	}

	logger.Info("cycle completed",
		"sources_processed", summary.SourcesProcessed,
		"sources_skipped", summary.SourcesSkipped,
		"items_fetched", summary.ItemsFetched,
		"insights_found", summary.InsightsFound,
		"jobs_attempted", summary.JobsAttempted,
		"jobs_succeeded", summary.JobsSucceeded,
		"jobs_failed", summary.JobsFailed,
		"jobs_skipped", summary.JobsSkipped,
		"published", summary.Published,
	)

	return summary, nil
}

// collect fetches from all sources concurrently. A failing source is skipped
// and never aborts the others; its cursor stays where it was.
func (p *Pipeline) collect(ctx context.Context, logger *slog.Logger, summary *domain.CycleSummary) ([]domain.RawItem, map[string]domain.Cursor, error) {
	committed, err := p.state.Cursors(ctx)
	if err != nil {
		return nil, nil, err
	}

	type result struct {
		items  []domain.RawItem
		cursor domain.Cursor
		err    error
	}
	results := make([]result, len(p.adapters))

	var g errgroup.Group
	for i, adapter := range p.adapters {
		g.Go(func() error {
			cursor := committed[adapter.SourceID()]
			cursor.SourceID = adapter.SourceID()

			err := p.governor.Execute(ctx, adapter.SourceID(), func(ctx context.Context) error {
				items, next, err := adapter.FetchSince(ctx, cursor)
				if err != nil && !errors.Is(err, domain.ErrSourceExhausted) {
					return err
				}
				results[i] = result{items: items, cursor: next}
				return nil
			})
			if err != nil && !errors.Is(err, domain.ErrSourceExhausted) {
				results[i] = result{err: err}
			}
			return nil
		})
	}
	_ = g.Wait()

	var items []domain.RawItem
	cursors := make(map[string]domain.Cursor, len(p.adapters))
	for i, adapter := range p.adapters {
		res := results[i]
		if res.err != nil {
			summary.SourcesSkipped++
			logger.Warn("source skipped", "source", adapter.SourceID(), "error", res.err)
			// Keep the committed cursor so nothing is silently lost.
			if prev, ok := committed[adapter.SourceID()]; ok {
				cursors[adapter.SourceID()] = prev
			}
			continue
		}

		summary.SourcesProcessed++
		items = append(items, res.items...)
		if !res.cursor.IsZero() {
			cursors[adapter.SourceID()] = res.cursor
		}
	}

	return items, cursors, nil
}

// republishPending retries artifacts that generated successfully but failed
// to publish in an earlier cycle, then returns the up-to-date published set.
// An unreadable published set is fatal: admitting jobs without it could
// publish a fingerprint twice.
func (p *Pipeline) republishPending(ctx context.Context, logger *slog.Logger, summary *domain.CycleSummary) (map[string]bool, error) {
	published, err := p.state.PublishedFingerprints(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := p.state.PendingArtifacts(ctx)
	if err != nil {
		logger.Warn("cannot load pending artifacts", "error", err)
		return published, nil
	}

	for _, artifact := range pending {
		if published[artifact.Fingerprint] {
			_ = p.state.DeletePendingArtifact(ctx, artifact.Fingerprint)
			continue
		}

		receipt, err := p.publisher.Publish(ctx, artifact)
		if err != nil {
			logger.Warn("pending artifact still unpublished",
				"fingerprint", artifact.Fingerprint, "error", err)
			continue
		}

		if err := p.state.MarkPublished(ctx, artifact.Fingerprint, artifact.TopicKey); err != nil {
			logger.Warn("cannot mark published", "fingerprint", artifact.Fingerprint, "error", err)
		}
		_ = p.state.DeletePendingArtifact(ctx, artifact.Fingerprint)
		published[artifact.Fingerprint] = true
		summary.Published++
		logger.Info("pending artifact published",
			"topic", artifact.TopicKey, "path", receipt.Path)
	}

	return published, nil
}

// execute runs admitted jobs with bounded concurrency and returns the
// fingerprints published this cycle.
func (p *Pipeline) execute(ctx context.Context, logger *slog.Logger, jobs []domain.GenerationJob, summary *domain.CycleSummary) []string {
	var (
		publishedMu    sync.Mutex
		cyclePublished []string
	)

	var g errgroup.Group
	g.SetLimit(p.maxJobs)

	for _, job := range jobs {
		if !p.claimTopic(job.TopicKey) {
			summary.JobsSkipped++
			continue
		}
		summary.JobsAttempted++

		g.Go(func() error {
			defer p.releaseTopic(job.TopicKey)

			fingerprint, err := p.runJob(ctx, logger, job)
			publishedMu.Lock()
			defer publishedMu.Unlock()
			if err != nil {
				summary.JobsFailed++
				return nil
			}
			summary.JobsSucceeded++
			if fingerprint != "" {
				cyclePublished = append(cyclePublished, fingerprint)
				summary.Published++
			}
			return nil
		})
	}
	_ = g.Wait()

	return cyclePublished
}

// runJob takes one job from running to a terminal state. Returns the
// fingerprint when the artifact was published, empty when it succeeded but
// remains unpublished.
func (p *Pipeline) runJob(ctx context.Context, logger *slog.Logger, job domain.GenerationJob) (string, error) {
	job.State = domain.JobRunning

	artifact, err := p.generator.Generate(ctx, job)
	if err != nil {
		job.State = domain.JobFailed
		genErr := &domain.GenerationError{TopicKey: job.TopicKey, Err: err}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Cycle abort, not a generation fault; the retry count stays
			// untouched so the topic is retried in full next cycle.
			return "", genErr
		}

		attempts, _, attemptsErr := p.state.GenerationAttempts(ctx, job.Fingerprint)
		if attemptsErr != nil {
			logger.Warn("cannot read generation attempts", "fingerprint", job.Fingerprint, "error", attemptsErr)
		}
		abandoned := attempts+1 >= p.admission.maxRetries
		if recordErr := p.state.RecordGenerationFailure(ctx, job.Fingerprint, abandoned); recordErr != nil {
			logger.Warn("cannot record generation failure", "fingerprint", job.Fingerprint, "error", recordErr)
		}
		if abandoned {
			logger.Warn("topic abandoned", "topic", job.TopicKey, "fingerprint", job.Fingerprint)
		} else {
			logger.Warn("generation failed", "topic", job.TopicKey, "error", genErr)
		}
		return "", genErr
	}

	artifact.Fingerprint = job.Fingerprint
	artifact.TopicKey = job.TopicKey

	receipt, err := p.publisher.Publish(ctx, artifact)
	if err != nil {
		// Succeeded-unpublished: cache the artifact and retry next cycle.
		job.State = domain.JobSucceeded
		pubErr := &domain.PublishError{Fingerprint: job.Fingerprint, Err: err}
		if saveErr := p.state.SavePendingArtifact(ctx, artifact); saveErr != nil {
			logger.Warn("cannot cache unpublished artifact", "fingerprint", job.Fingerprint, "error", saveErr)
		}
		logger.Warn("publish failed, artifact cached", "topic", job.TopicKey, "error", pubErr)
		return "", nil
	}

	job.State = domain.JobSucceeded
	if err := p.state.MarkPublished(ctx, job.Fingerprint, job.TopicKey); err != nil {
		logger.Warn("cannot mark published", "fingerprint", job.Fingerprint, "error", err)
	}
	logger.Info("chapter published", "topic", job.TopicKey, "path", receipt.Path)

	return job.Fingerprint, nil
}

func (p *Pipeline) claimTopic(topic string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.runningTopics[topic] {
		return false
	}
	p.runningTopics[topic] = true
	return true
}

func (p *Pipeline) releaseTopic(topic string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.runningTopics, topic)
}

func (p *Pipeline) snapshotRunning() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	snapshot := make(map[string]bool, len(p.runningTopics))
	for topic := range p.runningTopics {
		snapshot[topic] = true
	}
	return snapshot
}

func (p *Pipeline) setState(state CycleState) {
	p.mu.Lock()
	p.cycleState = state
	p.mu.Unlock()
}

func (p *Pipeline) abort(logger *slog.Logger, stage string, err error) error {
	logger.Error("cycle aborted", "stage", stage, "error", err)
	var fatal *domain.FatalPipelineError
	if errors.As(err, &fatal) {
		return err
	}
	return &domain.FatalPipelineError{Stage: stage, Err: err}
}

func (p *Pipeline) componentLogger() *slog.Logger {
	if p.logger != nil {
		return p.logger
	}
	return slog.Default()
}
