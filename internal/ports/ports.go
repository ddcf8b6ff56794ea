package ports

import (
	"context"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

// SourceAdapter pulls raw items from one external content source. FetchSince
// must be idempotent for a given cursor: calling it twice returns the same
// items or a superset, so reprocessing after a crash is safe.
type SourceAdapter interface {
	SourceID() string
	ReliabilityWeight() float64
	FetchSince(ctx context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error)
}

// Generator produces a content artifact for an admitted job.
type Generator interface {
	Version() string
	Generate(ctx context.Context, job domain.GenerationJob) (domain.Artifact, error)
}

// Publisher commits an artifact to the destination. Publishing the same
// fingerprint twice must be safe.
type Publisher interface {
	Publish(ctx context.Context, artifact domain.Artifact) (domain.PublishReceipt, error)
}

// InsightStore is the persistent dedup/scoring index keyed by topic.
type InsightStore interface {
	// Upsert merges the candidate into any stored insight with the same
	// topic key and returns the merged record.
	Upsert(ctx context.Context, candidate domain.Insight) (domain.Insight, error)

	// TopN returns up to n insights inside the retention window with signal
	// at or above minSignal, ordered by signal descending, then first-seen
	// ascending, then topic key.
	TopN(ctx context.Context, n int, minSignal float64, now time.Time) ([]domain.Insight, error)
}

// StateStore persists pipeline progress: cursors, published fingerprints,
// generation attempts, cached artifacts, and cycle checkpoints.
type StateStore interface {
	Cursors(ctx context.Context) (map[string]domain.Cursor, error)
	PublishedFingerprints(ctx context.Context) (map[string]bool, error)
	MarkPublished(ctx context.Context, fingerprint, topicKey string) error

	GenerationAttempts(ctx context.Context, fingerprint string) (attempts int, abandoned bool, err error)
	RecordGenerationFailure(ctx context.Context, fingerprint string, abandoned bool) error

	SavePendingArtifact(ctx context.Context, artifact domain.Artifact) error
	PendingArtifacts(ctx context.Context) ([]domain.Artifact, error)
	DeletePendingArtifact(ctx context.Context, fingerprint string) error

	// CommitCheckpoint atomically advances cursors, re-asserts published
	// fingerprints, and records the cycle. Cursors never regress.
	CommitCheckpoint(ctx context.Context, checkpoint domain.CycleCheckpoint) error
	LastCheckpoint(ctx context.Context) (domain.CycleCheckpoint, bool, error)
}

// Scheduler controls when pipeline cycles execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
