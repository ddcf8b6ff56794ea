// Package extract turns raw fetched items into normalized, scored topic
// insights. Extraction is pure over a batch; a bad item is logged and
// skipped, never aborting the rest.
package extract

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

// topicKeywords maps the phrases worth tracking to their canonical topic
// keys. Multi-word phrases are matched against normalized text, so "Swift UI"
// and "swift-ui" both land on swiftui.
var topicKeywords = map[string]string{
	"swiftui":                "swiftui",
	"swift ui":               "swiftui",
	"swiftdata":              "swiftdata",
	"swift data":             "swiftdata",
	"concurrency":            "concurrency",
	"async await":            "concurrency",
	"structured concurrency": "concurrency",
	"actors":                 "concurrency",
	"performance":            "performance",
	"optimization":           "performance",
	"monetization":           "monetization",
	"app store":              "appstore",
	"core ml":                "coreml",
	"coreml":                 "coreml",
	"widgetkit":              "widgetkit",
	"widget kit":             "widgetkit",
	"app intents":            "appintents",
	"xcode":                  "xcode",
	"swift":                  "swift",
	"ios":                    "ios",
}

// matchOrder holds the keywords longest-first so, among keywords mapping to
// the same topic key, the most specific phrase matches first. Distinct topic
// keys are additive: text containing "swift ui" emits both swiftui and swift.
var matchOrder = func() []string {
	keys := make([]string, 0, len(topicKeywords))
	for k := range topicKeywords {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// Extractor converts raw items into insight candidates.
type Extractor struct {
	policy  domain.ScoringPolicy
	weights map[string]float64
	logger  *slog.Logger
	now     func() time.Time
}

// New builds an extractor. weights maps source IDs to their reliability
// weight; unknown sources default to 0.5.
func New(policy domain.ScoringPolicy, weights map[string]float64, logger *slog.Logger) *Extractor {
	return &Extractor{
		policy:  policy,
		weights: weights,
		logger:  logger,
		now:     time.Now,
	}
}

// WithClock overrides the extractor's clock; tests use this.
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// Extract groups a batch of raw items by canonical topic and returns one
// scored insight candidate per topic.
func (e *Extractor) Extract(items []domain.RawItem) []domain.Insight {
	now := e.now()

	type bucket struct {
		evidence []string
		sources  map[string]struct{}
		newest   time.Time
		summary  string
	}
	buckets := map[string]*bucket{}

	for _, item := range items {
		topics, err := e.extractItem(item)
		if err != nil {
			e.debug("skipping item", "source", item.SourceID, "external_id", item.ExternalID, "error", err)
			continue
		}

		posted := item.PostedAt
		if posted.IsZero() {
			posted = item.FetchedAt
		}

		for _, topic := range topics {
			b := buckets[topic]
			if b == nil {
				b = &bucket{sources: map[string]struct{}{}}
				buckets[topic] = b
			}
			b.evidence = append(b.evidence, item.ExternalID)
			b.sources[item.SourceID] = struct{}{}
			if posted.After(b.newest) {
				b.newest = posted
				b.summary = strings.TrimSpace(item.Title)
			}
		}
	}

	insights := make([]domain.Insight, 0, len(buckets))
	for topic, b := range buckets {
		insight := domain.Insight{
			TopicKey:    topic,
			Summary:     b.summary,
			FirstSeenAt: now,
			LastSeenAt:  now,
		}
		insight.MergeEvidence(b.evidence)

		age := now.Sub(b.newest)
		if age < 0 {
			age = 0
		}
		insight.SignalStrength = e.policy.Score(e.avgWeight(b.sources), age, len(insight.EvidenceRefs))

		insights = append(insights, insight)
	}

	sort.Slice(insights, func(i, j int) bool {
		return insights[i].TopicKey < insights[j].TopicKey
	})
	return insights
}

func (e *Extractor) extractItem(item domain.RawItem) ([]string, error) {
	if item.ExternalID == "" {
		return nil, fmt.Errorf("item has no external id")
	}

	text := Normalize(item.Title + " " + item.Body)
	if text == "" {
		return nil, fmt.Errorf("item has no text")
	}

	padded := " " + text + " "
	seen := map[string]struct{}{}
	var topics []string
	for _, keyword := range matchOrder {
		if !strings.Contains(padded, " "+keyword+" ") {
			continue
		}
		topic := topicKeywords[keyword]
		if _, ok := seen[topic]; ok {
			continue
		}
		seen[topic] = struct{}{}
		topics = append(topics, topic)
	}

	if len(topics) == 0 {
		return nil, fmt.Errorf("no tracked topics")
	}
	return topics, nil
}

func (e *Extractor) avgWeight(sources map[string]struct{}) float64 {
	if len(sources) == 0 {
		return 0
	}
	var total float64
	for id := range sources {
		if w, ok := e.weights[id]; ok {
			total += w
		} else {
			total += 0.5
		}
	}
	return total / float64(len(sources))
}

// Normalize folds text into the canonical form topic matching runs against:
// lower case, punctuation replaced by spaces, whitespace collapsed.
func Normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}
