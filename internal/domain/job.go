package domain

import "time"

// JobState tracks a generation job through its lifecycle. Terminal states
// are final; a skipped job may be re-admitted as a fresh job next cycle.
type JobState string

const (
	JobQueued    JobState = "queued"
	JobRunning   JobState = "running"
	JobSucceeded JobState = "succeeded"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
)

// GenerationJob asks the generator to produce one content artifact for a
// topic. At most one job per topic key may be running at any instant.
type GenerationJob struct {
	ID          string
	TopicKey    string
	Fingerprint string
	Insight     Insight
	State       JobState
	CreatedAt   time.Time
}

// Artifact is a finished piece of course content ready for publishing.
type Artifact struct {
	TopicKey    string
	Fingerprint string
	Title       string
	Body        string
	GeneratedAt time.Time
}

// PublishReceipt records where an artifact landed.
type PublishReceipt struct {
	Fingerprint string
	Path        string
	PublishedAt time.Time
}
