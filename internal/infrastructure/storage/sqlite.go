// Package storage persists pipeline state in SQLite: the insight index,
// per-source cursors, published fingerprints, generation attempts, cached
// artifacts, and cycle checkpoints.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const schema = `
CREATE TABLE IF NOT EXISTS insights (
    topic_key   TEXT PRIMARY KEY,
    summary     TEXT NOT NULL DEFAULT '',
    evidence    TEXT NOT NULL DEFAULT '[]',
    signal      REAL NOT NULL DEFAULT 0,
    first_seen  TIMESTAMP NOT NULL,
    last_seen   TIMESTAMP NOT NULL,
    stale       INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS source_cursors (
    source_id   TEXT PRIMARY KEY,
    position    TEXT NOT NULL DEFAULT '',
    updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS published_fingerprints (
    fingerprint  TEXT PRIMARY KEY,
    topic_key    TEXT NOT NULL,
    published_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS generation_attempts (
    fingerprint TEXT PRIMARY KEY,
    attempts    INTEGER NOT NULL DEFAULT 0,
    abandoned   INTEGER NOT NULL DEFAULT 0,
    updated_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS pending_artifacts (
    fingerprint TEXT PRIMARY KEY,
    topic_key   TEXT NOT NULL,
    title       TEXT NOT NULL,
    body        TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS cycle_checkpoints (
    cycle_id     TEXT PRIMARY KEY,
    started_at   TIMESTAMP NOT NULL,
    completed_at TIMESTAMP NOT NULL,
    summary      TEXT NOT NULL DEFAULT '{}'
);
`

// Store implements the insight index and state store on one SQLite file.
type Store struct {
	db        *sql.DB
	retention time.Duration
	builder   sq.StatementBuilderType
}

var (
	_ ports.InsightStore = (*Store)(nil)
	_ ports.StateStore   = (*Store)(nil)
)

// Open creates or opens the SQLite database at path and ensures the schema.
func Open(path string, retention time.Duration) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// modernc sqlite serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent job completions.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if retention <= 0 {
		retention = 14 * 24 * time.Hour
	}

	return &Store{
		db:        db,
		retention: retention,
		builder:   sq.StatementBuilder.PlaceholderFormat(sq.Question),
	}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert merges the candidate into the stored insight for its topic key and
// returns the merged record. Signal strength never decreases for a topic.
func (s *Store) Upsert(ctx context.Context, candidate domain.Insight) (domain.Insight, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("begin upsert: %w", err)
	}
	defer tx.Rollback()

	existing, found, err := s.loadInsightTx(ctx, tx, candidate.TopicKey)
	if err != nil {
		return domain.Insight{}, err
	}

	merged := candidate
	merged.SignalStrength = domain.Clamp01(candidate.SignalStrength)
	if found {
		merged = existing
		merged.MergeEvidence(candidate.EvidenceRefs)
		merged.SignalStrength = domain.MergeSignal(existing.SignalStrength, candidate.SignalStrength)
		if candidate.Summary != "" {
			merged.Summary = candidate.Summary
		}
		if candidate.LastSeenAt.After(merged.LastSeenAt) {
			merged.LastSeenAt = candidate.LastSeenAt
		}
		if !candidate.FirstSeenAt.IsZero() && candidate.FirstSeenAt.Before(merged.FirstSeenAt) {
			merged.FirstSeenAt = candidate.FirstSeenAt
		}
		merged.Stale = false
	}

	evidence, err := json.Marshal(merged.EvidenceRefs)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("marshal evidence: %w", err)
	}

	query := `INSERT INTO insights (topic_key, summary, evidence, signal, first_seen, last_seen, stale)
              VALUES (?, ?, ?, ?, ?, ?, 0)
              ON CONFLICT (topic_key) DO UPDATE
              SET summary = excluded.summary,
                  evidence = excluded.evidence,
                  signal = excluded.signal,
                  first_seen = excluded.first_seen,
                  last_seen = excluded.last_seen,
                  stale = 0`

	_, err = tx.ExecContext(ctx, query,
		merged.TopicKey,
		merged.Summary,
		string(evidence),
		merged.SignalStrength,
		merged.FirstSeenAt.UTC(),
		merged.LastSeenAt.UTC(),
	)
	if err != nil {
		return domain.Insight{}, fmt.Errorf("upsert insight %s: %w", merged.TopicKey, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Insight{}, fmt.Errorf("commit upsert: %w", err)
	}

	return merged, nil
}

// TopN returns the highest-signal insights inside the retention window.
// Ordering is deterministic: signal descending, then first-seen ascending,
// then topic key.
func (s *Store) TopN(ctx context.Context, n int, minSignal float64, now time.Time) ([]domain.Insight, error) {
	cutoff := now.Add(-s.retention).UTC()

	query, args, err := s.builder.
		Select("topic_key", "summary", "evidence", "signal", "first_seen", "last_seen", "stale").
		From("insights").
		Where(sq.GtOrEq{"signal": minSignal}).
		Where(sq.GtOrEq{"last_seen": cutoff}).
		Where(sq.Eq{"stale": 0}).
		OrderBy("signal DESC", "first_seen ASC", "topic_key ASC").
		Limit(uint64(n)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build top-n query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query top insights: %w", err)
	}
	defer rows.Close()

	var results []domain.Insight
	for rows.Next() {
		insight, err := scanInsight(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, insight)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate top insights: %w", err)
	}

	return results, nil
}

// Cursors returns the last committed position for every known source.
func (s *Store) Cursors(ctx context.Context) (map[string]domain.Cursor, error) {
	query, args, err := s.builder.
		Select("source_id", "position").
		From("source_cursors").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build cursors query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cursors: %w", err)
	}
	defer rows.Close()

	cursors := make(map[string]domain.Cursor)
	for rows.Next() {
		var c domain.Cursor
		if err := rows.Scan(&c.SourceID, &c.Position); err != nil {
			return nil, fmt.Errorf("scan cursor: %w", err)
		}
		cursors[c.SourceID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cursors: %w", err)
	}

	return cursors, nil
}

// PublishedFingerprints returns the set of fingerprints ever published.
func (s *Store) PublishedFingerprints(ctx context.Context) (map[string]bool, error) {
	query, args, err := s.builder.
		Select("fingerprint").
		From("published_fingerprints").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build fingerprints query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fingerprints: %w", err)
	}
	defer rows.Close()

	published := make(map[string]bool)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, fmt.Errorf("scan fingerprint: %w", err)
		}
		published[fp] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fingerprints: %w", err)
	}

	return published, nil
}

// MarkPublished records a fingerprint the moment publish succeeds. Inserting
// twice is harmless.
func (s *Store) MarkPublished(ctx context.Context, fingerprint, topicKey string) error {
	query := `INSERT INTO published_fingerprints (fingerprint, topic_key, published_at)
              VALUES (?, ?, ?)
              ON CONFLICT (fingerprint) DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, fingerprint, topicKey, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark published %s: %w", fingerprint, err)
	}
	return nil
}

// GenerationAttempts reports how often generation has failed for the
// fingerprint and whether the topic was abandoned.
func (s *Store) GenerationAttempts(ctx context.Context, fingerprint string) (int, bool, error) {
	query, args, err := s.builder.
		Select("attempts", "abandoned").
		From("generation_attempts").
		Where(sq.Eq{"fingerprint": fingerprint}).
		ToSql()
	if err != nil {
		return 0, false, fmt.Errorf("build attempts query: %w", err)
	}

	var attempts, abandoned int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&attempts, &abandoned)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query attempts %s: %w", fingerprint, err)
	}

	return attempts, abandoned != 0, nil
}

// RecordGenerationFailure bumps the attempt counter for the fingerprint and
// optionally marks the topic abandoned.
func (s *Store) RecordGenerationFailure(ctx context.Context, fingerprint string, abandoned bool) error {
	query := `INSERT INTO generation_attempts (fingerprint, attempts, abandoned, updated_at)
              VALUES (?, 1, ?, ?)
              ON CONFLICT (fingerprint) DO UPDATE
              SET attempts = generation_attempts.attempts + 1,
                  abandoned = excluded.abandoned,
                  updated_at = excluded.updated_at`

	flag := 0
	if abandoned {
		flag = 1
	}
	if _, err := s.db.ExecContext(ctx, query, fingerprint, flag, time.Now().UTC()); err != nil {
		return fmt.Errorf("record generation failure %s: %w", fingerprint, err)
	}
	return nil
}

// SavePendingArtifact caches a generated-but-unpublished artifact so the
// next cycle can publish without regenerating.
func (s *Store) SavePendingArtifact(ctx context.Context, artifact domain.Artifact) error {
	query := `INSERT INTO pending_artifacts (fingerprint, topic_key, title, body, created_at)
              VALUES (?, ?, ?, ?, ?)
              ON CONFLICT (fingerprint) DO UPDATE
              SET title = excluded.title,
                  body = excluded.body`

	_, err := s.db.ExecContext(ctx, query,
		artifact.Fingerprint, artifact.TopicKey, artifact.Title, artifact.Body, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save pending artifact %s: %w", artifact.Fingerprint, err)
	}
	return nil
}

// PendingArtifacts lists cached artifacts awaiting publishing.
func (s *Store) PendingArtifacts(ctx context.Context) ([]domain.Artifact, error) {
	query, args, err := s.builder.
		Select("fingerprint", "topic_key", "title", "body", "created_at").
		From("pending_artifacts").
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pending query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pending artifacts: %w", err)
	}
	defer rows.Close()

	var artifacts []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.Fingerprint, &a.TopicKey, &a.Title, &a.Body, &a.GeneratedAt); err != nil {
			return nil, fmt.Errorf("scan pending artifact: %w", err)
		}
		artifacts = append(artifacts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending artifacts: %w", err)
	}

	return artifacts, nil
}

// DeletePendingArtifact drops the cached artifact once it is published.
func (s *Store) DeletePendingArtifact(ctx context.Context, fingerprint string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_artifacts WHERE fingerprint = ?`, fingerprint); err != nil {
		return fmt.Errorf("delete pending artifact %s: %w", fingerprint, err)
	}
	return nil
}

// CommitCheckpoint records a completed cycle in one transaction: cursors
// advance (never regress), published fingerprints are re-asserted, insights
// outside the retention window are marked stale, and the checkpoint row is
// written last.
func (s *Store) CommitCheckpoint(ctx context.Context, checkpoint domain.CycleCheckpoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin checkpoint: %w", err)
	}
	defer tx.Rollback()

	for _, cursor := range checkpoint.Cursors {
		if cursor.IsZero() {
			continue
		}
		// Positions are lexically monotonic (RFC3339 timestamps), so the
		// comparison keeps cursors from regressing.
		query := `INSERT INTO source_cursors (source_id, position, updated_at)
                  VALUES (?, ?, ?)
                  ON CONFLICT (source_id) DO UPDATE
                  SET position = excluded.position,
                      updated_at = excluded.updated_at
                  WHERE excluded.position > source_cursors.position`
		if _, err := tx.ExecContext(ctx, query, cursor.SourceID, cursor.Position, checkpoint.CompletedAt.UTC()); err != nil {
			return fmt.Errorf("advance cursor %s: %w", cursor.SourceID, err)
		}
	}

	for _, fp := range checkpoint.Published {
		query := `INSERT INTO published_fingerprints (fingerprint, topic_key, published_at)
                  VALUES (?, '', ?)
                  ON CONFLICT (fingerprint) DO NOTHING`
		if _, err := tx.ExecContext(ctx, query, fp, checkpoint.CompletedAt.UTC()); err != nil {
			return fmt.Errorf("assert fingerprint %s: %w", fp, err)
		}
	}

	cutoff := checkpoint.CompletedAt.Add(-s.retention).UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE insights SET stale = 1 WHERE last_seen < ?`, cutoff); err != nil {
		return fmt.Errorf("sweep stale insights: %w", err)
	}

	summary, err := json.Marshal(checkpoint.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	query := `INSERT INTO cycle_checkpoints (cycle_id, started_at, completed_at, summary)
              VALUES (?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, query,
		checkpoint.CycleID, checkpoint.StartedAt.UTC(), checkpoint.CompletedAt.UTC(), string(summary)); err != nil {
		return fmt.Errorf("write checkpoint %s: %w", checkpoint.CycleID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit checkpoint: %w", err)
	}
	return nil
}

// LastCheckpoint returns the most recently committed cycle, with cursors and
// published fingerprints reflecting current durable state.
func (s *Store) LastCheckpoint(ctx context.Context) (domain.CycleCheckpoint, bool, error) {
	var (
		checkpoint domain.CycleCheckpoint
		summary    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT cycle_id, started_at, completed_at, summary
         FROM cycle_checkpoints ORDER BY completed_at DESC LIMIT 1`).
		Scan(&checkpoint.CycleID, &checkpoint.StartedAt, &checkpoint.CompletedAt, &summary)
	if err == sql.ErrNoRows {
		return domain.CycleCheckpoint{}, false, nil
	}
	if err != nil {
		return domain.CycleCheckpoint{}, false, fmt.Errorf("query last checkpoint: %w", err)
	}

	if err := json.Unmarshal([]byte(summary), &checkpoint.Summary); err != nil {
		return domain.CycleCheckpoint{}, false, fmt.Errorf("parse checkpoint summary: %w", err)
	}

	cursors, err := s.Cursors(ctx)
	if err != nil {
		return domain.CycleCheckpoint{}, false, err
	}
	checkpoint.Cursors = cursors

	published, err := s.PublishedFingerprints(ctx)
	if err != nil {
		return domain.CycleCheckpoint{}, false, err
	}
	for fp := range published {
		checkpoint.Published = append(checkpoint.Published, fp)
	}

	return checkpoint, true, nil
}

func (s *Store) loadInsightTx(ctx context.Context, tx *sql.Tx, topicKey string) (domain.Insight, bool, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT topic_key, summary, evidence, signal, first_seen, last_seen, stale
         FROM insights WHERE topic_key = ?`, topicKey)

	insight, err := scanInsight(row)
	if err == sql.ErrNoRows {
		return domain.Insight{}, false, nil
	}
	if err != nil {
		return domain.Insight{}, false, err
	}
	return insight, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInsight(row rowScanner) (domain.Insight, error) {
	var (
		insight  domain.Insight
		evidence string
		stale    int
	)
	err := row.Scan(&insight.TopicKey, &insight.Summary, &evidence,
		&insight.SignalStrength, &insight.FirstSeenAt, &insight.LastSeenAt, &stale)
	if err == sql.ErrNoRows {
		return domain.Insight{}, err
	}
	if err != nil {
		return domain.Insight{}, fmt.Errorf("scan insight: %w", err)
	}

	if err := json.Unmarshal([]byte(evidence), &insight.EvidenceRefs); err != nil {
		return domain.Insight{}, fmt.Errorf("parse evidence for %s: %w", insight.TopicKey, err)
	}
	insight.Stale = stale != 0

	return insight, nil
}
