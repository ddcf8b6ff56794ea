package extract

import (
	"testing"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"SwiftUI Animations!", "swiftui animations"},
		{"  async/await   deep-dive ", "async await deep dive"},
		{"Core ML @ WWDC", "core ml wwdc"},
		{"", ""},
		{"---", ""},
	}

	for _, tc := range tests {
		if got := Normalize(tc.in); got != tc.want {
			t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func newTestExtractor(now time.Time) *Extractor {
	policy := domain.ScoringPolicy{RecencyHalfLife: 84 * time.Hour}
	weights := map[string]float64{"youtube": 0.8, "reddit": 0.5}
	return New(policy, weights, nil).WithClock(func() time.Time { return now })
}

func TestExtractGroupsByTopic(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	items := []domain.RawItem{
		{
			SourceID:   "youtube",
			ExternalID: "yt:1",
			Title:      "SwiftUI navigation patterns",
			PostedAt:   now.Add(-2 * time.Hour),
		},
		{
			SourceID:   "reddit",
			ExternalID: "rd:1",
			Title:      "Why SwiftUI previews break",
			PostedAt:   now.Add(-1 * time.Hour),
		},
	}

	insights := e.Extract(items)
	if len(insights) != 1 {
		t.Fatalf("got %d insights, want 1: %+v", len(insights), insights)
	}

	in := insights[0]
	if in.TopicKey != "swiftui" {
		t.Fatalf("topic = %q, want swiftui", in.TopicKey)
	}
	if len(in.EvidenceRefs) != 2 {
		t.Fatalf("evidence = %v, want both items", in.EvidenceRefs)
	}
	if in.Summary != "Why SwiftUI previews break" {
		t.Fatalf("summary = %q, want the newest item's title", in.Summary)
	}
	if in.SignalStrength <= 0 || in.SignalStrength > 1 {
		t.Fatalf("signal out of range: %v", in.SignalStrength)
	}
}

func TestExtractSkipsBadItems(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	items := []domain.RawItem{
		{SourceID: "youtube", ExternalID: "", Title: "SwiftUI tips"},
		{SourceID: "youtube", ExternalID: "yt:2", Title: "   "},
		{SourceID: "youtube", ExternalID: "yt:3", Title: "Gardening for beginners"},
		{SourceID: "youtube", ExternalID: "yt:4", Title: "WidgetKit deep dive", PostedAt: now},
	}

	insights := e.Extract(items)
	if len(insights) != 1 {
		t.Fatalf("got %d insights, want 1: %+v", len(insights), insights)
	}
	if insights[0].TopicKey != "widgetkit" {
		t.Fatalf("topic = %q, want widgetkit", insights[0].TopicKey)
	}
	if len(insights[0].EvidenceRefs) != 1 || insights[0].EvidenceRefs[0] != "yt:4" {
		t.Fatalf("evidence = %v, want only the valid item", insights[0].EvidenceRefs)
	}
}

func TestExtractLongestPhraseWins(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	items := []domain.RawItem{
		{SourceID: "youtube", ExternalID: "yt:1", Title: "Structured concurrency explained", PostedAt: now},
	}

	insights := e.Extract(items)
	if len(insights) != 1 {
		t.Fatalf("got %d insights, want 1: %+v", len(insights), insights)
	}
	if insights[0].TopicKey != "concurrency" {
		t.Fatalf("topic = %q, want concurrency", insights[0].TopicKey)
	}
}

func TestExtractMultiTopicItem(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	items := []domain.RawItem{
		{SourceID: "reddit", ExternalID: "rd:1", Title: "SwiftUI performance tricks", PostedAt: now},
	}

	insights := e.Extract(items)
	if len(insights) != 2 {
		t.Fatalf("got %d insights, want 2: %+v", len(insights), insights)
	}
	// Output is sorted by topic key.
	if insights[0].TopicKey != "performance" || insights[1].TopicKey != "swiftui" {
		t.Fatalf("topics = [%s %s], want [performance swiftui]",
			insights[0].TopicKey, insights[1].TopicKey)
	}
}

func TestExtractPhraseMatchIsAdditive(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	// "Swift UI" maps to swiftui and its "swift" word also stands alone;
	// both topics are emitted, with the synonym table deduping only within
	// a single topic key.
	items := []domain.RawItem{
		{SourceID: "reddit", ExternalID: "rd:1", Title: "Swift UI layout tips", PostedAt: now},
	}

	insights := e.Extract(items)
	if len(insights) != 2 {
		t.Fatalf("got %d insights, want 2: %+v", len(insights), insights)
	}
	if insights[0].TopicKey != "swift" || insights[1].TopicKey != "swiftui" {
		t.Fatalf("topics = [%s %s], want [swift swiftui]",
			insights[0].TopicKey, insights[1].TopicKey)
	}
}

func TestExtractFallsBackToFetchTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := newTestExtractor(now)

	items := []domain.RawItem{
		{SourceID: "reddit", ExternalID: "rd:1", Title: "Xcode build settings", FetchedAt: now.Add(-time.Hour)},
	}

	insights := e.Extract(items)
	if len(insights) != 1 {
		t.Fatalf("got %d insights, want 1", len(insights))
	}
	if insights[0].SignalStrength <= 0 {
		t.Fatalf("signal = %v, want > 0 when PostedAt falls back to FetchedAt", insights[0].SignalStrength)
	}
}
