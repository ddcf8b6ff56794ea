// Package sources holds the concrete source adapters: syndication feeds
// (YouTube channels, the Swift.org blog), Reddit listings, the GitHub
// trending page, and Apple's documentation updates. Each adapter stays thin:
// fetch, parse, filter; topic extraction happens downstream.
package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const userAgent = "swift-course-agent/1.0"

// FeedAdapter pulls entries from one or more Atom/RSS feeds.
type FeedAdapter struct {
	sourceID  string
	weight    float64
	urls      []string
	maxItems  int
	freshness time.Duration
	client    *http.Client
	now       func() time.Time
}

var _ ports.SourceAdapter = (*FeedAdapter)(nil)

// NewFeedAdapter builds a feed adapter from its config entry. Recognized
// options: maxItems (per feed, default 5), freshnessDays (default 7).
func NewFeedAdapter(cfg config.SourceConfig, client *http.Client) *FeedAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	urls := cfg.URLs
	if len(urls) == 0 && cfg.URL != "" {
		urls = []string{cfg.URL}
	}

	return &FeedAdapter{
		sourceID:  cfg.ID,
		weight:    cfg.ReliabilityWeight,
		urls:      urls,
		maxItems:  intOption(cfg.Options, "maxItems", 5),
		freshness: time.Duration(intOption(cfg.Options, "freshnessDays", 7)) * 24 * time.Hour,
		client:    client,
		now:       time.Now,
	}
}

// SourceID identifies the adapter.
func (f *FeedAdapter) SourceID() string { return f.sourceID }

// ReliabilityWeight reports how much this source's evidence counts.
func (f *FeedAdapter) ReliabilityWeight() float64 { return f.weight }

// FetchSince returns fresh entries newer than the cursor across all feeds.
// The next cursor is the newest publish timestamp seen, so re-fetching with
// the same cursor yields the same items again.
func (f *FeedAdapter) FetchSince(ctx context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	since := cursorTime(cursor)
	now := f.now()

	var items []domain.RawItem
	for _, feedURL := range f.urls {
		raw, err := fetchBody(ctx, f.client, feedURL)
		if err != nil {
			return nil, cursor, fmt.Errorf("%w: fetch %s: %v", domain.ErrSourceUnavailable, feedURL, err)
		}

		entries, err := parseFeed(raw)
		if err != nil {
			return nil, cursor, fmt.Errorf("parse feed %s: %w", feedURL, err)
		}

		count := 0
		for _, entry := range entries {
			if count >= f.maxItems {
				break
			}
			if entry.Published.Before(since) || now.Sub(entry.Published) > f.freshness {
				continue
			}
			items = append(items, domain.RawItem{
				SourceID:   f.sourceID,
				ExternalID: entry.ID,
				Title:      entry.Title,
				Body:       entry.Summary,
				URL:        entry.Link,
				FetchedAt:  now,
				PostedAt:   entry.Published,
			})
			count++
		}
	}

	next := advanceCursor(cursor, f.sourceID, items)
	return items, next, nil
}

// feedEntry is the shape shared by Atom entries and RSS items.
type feedEntry struct {
	ID        string
	Title     string
	Link      string
	Summary   string
	Published time.Time
}

type atomFeed struct {
	XMLName xml.Name    `xml:"feed"`
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Title     string     `xml:"title"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Summary   string     `xml:"summary"`
	Links     []atomLink `xml:"link"`
	Media     struct {
		Description string `xml:"description"`
	} `xml:"group"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

type rssFeed struct {
	XMLName xml.Name `xml:"rss"`
	Channel struct {
		Items []rssItem `xml:"item"`
	} `xml:"channel"`
}

type rssItem struct {
	GUID        string `xml:"guid"`
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
}

// parseFeed accepts either an Atom feed (YouTube) or an RSS 2.0 feed
// (Swift.org blog) and returns entries sorted newest first.
func parseFeed(raw []byte) ([]feedEntry, error) {
	var atom atomFeed
	if err := xml.Unmarshal(raw, &atom); err == nil && len(atom.Entries) > 0 {
		entries := make([]feedEntry, 0, len(atom.Entries))
		for _, e := range atom.Entries {
			published := parseFeedTime(e.Published)
			if published.IsZero() {
				published = parseFeedTime(e.Updated)
			}
			summary := e.Summary
			if summary == "" {
				summary = e.Media.Description
			}
			entries = append(entries, feedEntry{
				ID:        e.ID,
				Title:     e.Title,
				Link:      firstAlternateLink(e.Links),
				Summary:   summary,
				Published: published,
			})
		}
		sortEntries(entries)
		return entries, nil
	}

	var rss rssFeed
	if err := xml.Unmarshal(raw, &rss); err != nil {
		return nil, fmt.Errorf("document is neither atom nor rss: %w", err)
	}

	entries := make([]feedEntry, 0, len(rss.Channel.Items))
	for _, item := range rss.Channel.Items {
		id := item.GUID
		if id == "" {
			id = item.Link
		}
		entries = append(entries, feedEntry{
			ID:        id,
			Title:     item.Title,
			Link:      item.Link,
			Summary:   item.Description,
			Published: parseFeedTime(item.PubDate),
		})
	}
	sortEntries(entries)
	return entries, nil
}

func sortEntries(entries []feedEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Published.After(entries[j].Published)
	})
}

func firstAlternateLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return l.Href
		}
	}
	if len(links) > 0 {
		return links[0].Href
	}
	return ""
}

var feedTimeLayouts = []string{
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseFeedTime(value string) time.Time {
	for _, layout := range feedTimeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// cursorTime interprets the cursor position as an RFC3339 timestamp.
func cursorTime(cursor domain.Cursor) time.Time {
	if cursor.IsZero() {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, cursor.Position)
	if err != nil {
		return time.Time{}
	}
	return t
}

// advanceCursor moves the cursor to the newest item timestamp, never
// backwards.
func advanceCursor(cursor domain.Cursor, sourceID string, items []domain.RawItem) domain.Cursor {
	newest := cursorTime(cursor)
	for _, item := range items {
		posted := item.PostedAt
		if posted.IsZero() {
			posted = item.FetchedAt
		}
		if posted.After(newest) {
			newest = posted
		}
	}

	next := domain.Cursor{SourceID: sourceID, Position: cursor.Position}
	if !newest.IsZero() {
		next.Position = newest.UTC().Format(time.RFC3339)
	}
	return next
}

func fetchBody(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

func intOption(options map[string]string, key string, fallback int) int {
	if raw, ok := options[key]; ok {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}
