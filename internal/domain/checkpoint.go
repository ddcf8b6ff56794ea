package domain

import "time"

// CycleCheckpoint is the durable record of one completed pipeline cycle.
// It is written atomically together with cursor advances and published
// fingerprints, so a crash mid-cycle leaves the previous checkpoint intact.
type CycleCheckpoint struct {
	CycleID     string
	StartedAt   time.Time
	CompletedAt time.Time
	Cursors     map[string]Cursor
	Published   []string
	Summary     CycleSummary
}

// CycleSummary is the per-cycle report emitted regardless of partial
// failures.
type CycleSummary struct {
	SourcesProcessed int `json:"sources_processed"`
	SourcesSkipped   int `json:"sources_skipped"`
	ItemsFetched     int `json:"items_fetched"`
	InsightsFound    int `json:"insights_found"`
	JobsAttempted    int `json:"jobs_attempted"`
	JobsSucceeded    int `json:"jobs_succeeded"`
	JobsFailed       int `json:"jobs_failed"`
	JobsSkipped      int `json:"jobs_skipped"`
	Published        int `json:"published"`
}
