package governor

import "sync"

// Breaker tracks consecutive failures per source within a cycle. After
// threshold consecutive failures from the same source it trips, and all
// further calls for that source are short-circuited until the next cycle.
type Breaker struct {
	mu               sync.Mutex
	consecutiveFails map[string]int
	tripped          map[string]bool
	threshold        int
}

// NewBreaker creates a breaker with the given trip threshold.
func NewBreaker(threshold int) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{
		consecutiveFails: make(map[string]int),
		tripped:          make(map[string]bool),
		threshold:        threshold,
	}
}

// RecordFailure counts a failure for the source. Returns true if the circuit
// has now tripped (or was already tripped).
func (b *Breaker) RecordFailure(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails[sourceID]++
	if b.consecutiveFails[sourceID] >= b.threshold {
		b.tripped[sourceID] = true
	}
	return b.tripped[sourceID]
}

// RecordSuccess resets the failure count for the source.
func (b *Breaker) RecordSuccess(sourceID string) {
	if sourceID == "" {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.consecutiveFails, sourceID)
	delete(b.tripped, sourceID)
}

// IsTripped reports whether the circuit for the source is open.
func (b *Breaker) IsTripped(sourceID string) bool {
	if sourceID == "" {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.tripped[sourceID]
}

// Reset clears all state, allowing every source a fresh probe. Called at the
// start of each cycle.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.consecutiveFails = make(map[string]int)
	b.tripped = make(map[string]bool)
}
