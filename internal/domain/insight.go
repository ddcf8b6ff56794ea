package domain

import (
	"sort"
	"time"
)

// Cursor marks the last position successfully processed for a source.
// Adapters interpret Position themselves (an external ID or RFC3339 timestamp).
type Cursor struct {
	SourceID string
	Position string
}

// IsZero reports whether the cursor has no recorded position yet.
func (c Cursor) IsZero() bool {
	return c.Position == ""
}

// RawItem is a single piece of content pulled from a source. Immutable and
// held only for the cycle that fetched it.
type RawItem struct {
	SourceID   string
	ExternalID string
	Title      string
	Body       string
	URL        string
	Score      int
	FetchedAt  time.Time
	PostedAt   time.Time
}

// Insight is a normalized, scored observation about one topic, merged across
// sources by topic key.
type Insight struct {
	TopicKey       string
	Summary        string
	EvidenceRefs   []string
	SignalStrength float64
	FirstSeenAt    time.Time
	LastSeenAt     time.Time
	Stale          bool
}

// MergeEvidence unions the given refs into the insight's evidence set,
// keeping the result sorted for deterministic fingerprints.
func (in *Insight) MergeEvidence(refs []string) {
	set := make(map[string]struct{}, len(in.EvidenceRefs)+len(refs))
	for _, r := range in.EvidenceRefs {
		set[r] = struct{}{}
	}
	for _, r := range refs {
		if r != "" {
			set[r] = struct{}{}
		}
	}

	merged := make([]string, 0, len(set))
	for r := range set {
		merged = append(merged, r)
	}
	sort.Strings(merged)
	in.EvidenceRefs = merged
}
