package sources

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const appleDevBaseURL = "https://developer.apple.com"

// DocsAdapter scrapes the Apple Developer documentation updates page. Each
// update carries its own timestamp, so the cursor advances like a feed's.
type DocsAdapter struct {
	sourceID string
	weight   float64
	url      string
	maxItems int
	client   *http.Client
	now      func() time.Time
}

var _ ports.SourceAdapter = (*DocsAdapter)(nil)

// NewDocsAdapter builds a documentation-updates adapter from its config
// entry. Recognized options: maxItems (default 10).
func NewDocsAdapter(cfg config.SourceConfig, client *http.Client) *DocsAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &DocsAdapter{
		sourceID: cfg.ID,
		weight:   cfg.ReliabilityWeight,
		url:      cfg.URL,
		maxItems: intOption(cfg.Options, "maxItems", 10),
		client:   client,
		now:      time.Now,
	}
}

// SourceID identifies the adapter.
func (d *DocsAdapter) SourceID() string { return d.sourceID }

// ReliabilityWeight reports how much this source's evidence counts.
func (d *DocsAdapter) ReliabilityWeight() float64 { return d.weight }

// FetchSince returns documentation updates newer than the cursor.
func (d *DocsAdapter) FetchSince(ctx context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	doc, err := fetchDocument(ctx, d.client, d.url)
	if err != nil {
		return nil, cursor, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	since := cursorTime(cursor)
	now := d.now()

	var items []domain.RawItem
	doc.Find("div.update-item").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		if len(items) >= d.maxItems {
			return false
		}

		item, err := parseUpdateItem(sel, d.sourceID, now)
		if err != nil {
			return true
		}
		if !item.PostedAt.After(since) {
			return true
		}

		items = append(items, item)
		return true
	})

	next := advanceCursor(cursor, d.sourceID, items)
	return items, next, nil
}

// parseUpdateItem reads one update block: an h3 title, a time element with a
// datetime attribute, an optional p description and an optional link.
func parseUpdateItem(sel *goquery.Selection, sourceID string, now time.Time) (domain.RawItem, error) {
	title := strings.TrimSpace(sel.Find("h3").First().Text())
	if title == "" {
		return domain.RawItem{}, fmt.Errorf("update has no title")
	}

	datetime, _ := sel.Find("time").First().Attr("datetime")
	posted := parseUpdateTime(datetime)
	if posted.IsZero() {
		return domain.RawItem{}, fmt.Errorf("update %q has no timestamp", title)
	}

	description := strings.TrimSpace(sel.Find("p").First().Text())

	link, _ := sel.Find("a").First().Attr("href")
	if strings.HasPrefix(link, "/") {
		link = appleDevBaseURL + link
	}

	externalID := link
	if externalID == "" {
		externalID = title
	}

	return domain.RawItem{
		SourceID:   sourceID,
		ExternalID: externalID,
		Title:      title,
		Body:       description,
		URL:        link,
		FetchedAt:  now,
		PostedAt:   posted,
	}, nil
}

// parseUpdateTime accepts full RFC3339 timestamps as well as the date-only
// form the updates page uses.
func parseUpdateTime(value string) time.Time {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC()
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t.UTC()
	}
	return time.Time{}
}
