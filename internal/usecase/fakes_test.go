package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

// memStore is an in-memory stand-in for the SQLite store, honoring the same
// merge and monotonicity rules.
type memStore struct {
	mu          sync.Mutex
	insights    map[string]domain.Insight
	cursors     map[string]domain.Cursor
	published   map[string]bool
	attempts    map[string]int
	abandoned   map[string]bool
	pending     map[string]domain.Artifact
	checkpoints []domain.CycleCheckpoint
}

func newMemStore() *memStore {
	return &memStore{
		insights:  map[string]domain.Insight{},
		cursors:   map[string]domain.Cursor{},
		published: map[string]bool{},
		attempts:  map[string]int{},
		abandoned: map[string]bool{},
		pending:   map[string]domain.Artifact{},
	}
}

func (m *memStore) Upsert(_ context.Context, candidate domain.Insight) (domain.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	merged := candidate
	if existing, ok := m.insights[candidate.TopicKey]; ok {
		merged = existing
		merged.MergeEvidence(candidate.EvidenceRefs)
		merged.SignalStrength = domain.MergeSignal(existing.SignalStrength, candidate.SignalStrength)
		if candidate.Summary != "" {
			merged.Summary = candidate.Summary
		}
		if candidate.LastSeenAt.After(merged.LastSeenAt) {
			merged.LastSeenAt = candidate.LastSeenAt
		}
		merged.Stale = false
	}
	m.insights[candidate.TopicKey] = merged
	return merged, nil
}

func (m *memStore) TopN(_ context.Context, n int, minSignal float64, _ time.Time) ([]domain.Insight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ranked []domain.Insight
	for _, in := range m.insights {
		if in.Stale || in.SignalStrength < minSignal {
			continue
		}
		ranked = append(ranked, in)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].SignalStrength != ranked[j].SignalStrength {
			return ranked[i].SignalStrength > ranked[j].SignalStrength
		}
		if !ranked[i].FirstSeenAt.Equal(ranked[j].FirstSeenAt) {
			return ranked[i].FirstSeenAt.Before(ranked[j].FirstSeenAt)
		}
		return ranked[i].TopicKey < ranked[j].TopicKey
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func (m *memStore) Cursors(context.Context) (map[string]domain.Cursor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]domain.Cursor, len(m.cursors))
	for k, v := range m.cursors {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) PublishedFingerprints(context.Context) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.published))
	for k := range m.published {
		out[k] = true
	}
	return out, nil
}

func (m *memStore) MarkPublished(_ context.Context, fingerprint, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[fingerprint] = true
	return nil
}

func (m *memStore) GenerationAttempts(_ context.Context, fingerprint string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[fingerprint], m.abandoned[fingerprint], nil
}

func (m *memStore) RecordGenerationFailure(_ context.Context, fingerprint string, abandoned bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[fingerprint]++
	m.abandoned[fingerprint] = abandoned
	return nil
}

func (m *memStore) SavePendingArtifact(_ context.Context, artifact domain.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[artifact.Fingerprint] = artifact
	return nil
}

func (m *memStore) PendingArtifacts(context.Context) ([]domain.Artifact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Artifact
	for _, a := range m.pending {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fingerprint < out[j].Fingerprint })
	return out, nil
}

func (m *memStore) DeletePendingArtifact(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, fingerprint)
	return nil
}

func (m *memStore) CommitCheckpoint(_ context.Context, checkpoint domain.CycleCheckpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, cursor := range checkpoint.Cursors {
		if cursor.IsZero() {
			continue
		}
		if prev, ok := m.cursors[id]; ok && cursor.Position <= prev.Position {
			continue
		}
		m.cursors[id] = cursor
	}
	for _, fp := range checkpoint.Published {
		m.published[fp] = true
	}
	m.checkpoints = append(m.checkpoints, checkpoint)
	return nil
}

func (m *memStore) LastCheckpoint(context.Context) (domain.CycleCheckpoint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.checkpoints) == 0 {
		return domain.CycleCheckpoint{}, false, nil
	}
	return m.checkpoints[len(m.checkpoints)-1], true, nil
}

func (m *memStore) checkpointCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkpoints)
}

func (m *memStore) pendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

func (m *memStore) isPublished(fp string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.published[fp]
}

// fakeAdapter serves a fixed batch of items.
type fakeAdapter struct {
	id     string
	weight float64
	items  []domain.RawItem
	next   domain.Cursor
	err    error

	mu    sync.Mutex
	calls int
	seen  []domain.Cursor
}

func (f *fakeAdapter) SourceID() string           { return f.id }
func (f *fakeAdapter) ReliabilityWeight() float64 { return f.weight }

func (f *fakeAdapter) FetchSince(_ context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	f.mu.Lock()
	f.calls++
	f.seen = append(f.seen, cursor)
	f.mu.Unlock()

	if f.err != nil {
		return nil, cursor, f.err
	}
	next := f.next
	if next.IsZero() {
		next = cursor
	}
	return f.items, next, nil
}

// fakeGenerator returns a canned artifact or delegates to a hook.
type fakeGenerator struct {
	version string
	hook    func(ctx context.Context, job domain.GenerationJob) (domain.Artifact, error)

	mu    sync.Mutex
	calls int
}

func (f *fakeGenerator) Version() string {
	if f.version == "" {
		return "v1"
	}
	return f.version
}

func (f *fakeGenerator) Generate(ctx context.Context, job domain.GenerationJob) (domain.Artifact, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.hook != nil {
		return f.hook(ctx, job)
	}
	return domain.Artifact{
		TopicKey:    job.TopicKey,
		Fingerprint: job.Fingerprint,
		Title:       "Chapter: " + job.TopicKey,
		Body:        "# " + job.TopicKey + "\n\ngenerated",
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakePublisher records what was published and can be told to fail.
type fakePublisher struct {
	mu        sync.Mutex
	err       error
	published []domain.Artifact
}

func (f *fakePublisher) Publish(_ context.Context, artifact domain.Artifact) (domain.PublishReceipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.PublishReceipt{}, f.err
	}
	f.published = append(f.published, artifact)
	return domain.PublishReceipt{
		Fingerprint: artifact.Fingerprint,
		Path:        "book/src/auto-generated/chapter_" + artifact.TopicKey + ".md",
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (f *fakePublisher) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakePublisher) publishCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.published)
}

// fakeDriver implements ports.Scheduler for trigger tests.
type fakeDriver struct {
	mu      sync.Mutex
	job     func(time.Time)
	started bool
	stopped bool
}

func (f *fakeDriver) Start(_ context.Context, job func(time.Time)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.job = job
	f.started = true
	return nil
}

func (f *fakeDriver) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	return nil
}

func (f *fakeDriver) fire(at time.Time) {
	f.mu.Lock()
	job := f.job
	f.mu.Unlock()
	if job != nil {
		job(at)
	}
}
