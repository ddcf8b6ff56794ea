package sources

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const githubBaseURL = "https://github.com"

// TrendingAdapter scrapes a GitHub trending page for repositories.
type TrendingAdapter struct {
	sourceID string
	weight   float64
	url      string
	minStars int
	maxRepos int
	client   *http.Client
	now      func() time.Time
}

var _ ports.SourceAdapter = (*TrendingAdapter)(nil)

// NewTrendingAdapter builds a trending adapter from its config entry.
// Recognized options: minStars (default 50), maxRepos (default 10).
func NewTrendingAdapter(cfg config.SourceConfig, client *http.Client) *TrendingAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	return &TrendingAdapter{
		sourceID: cfg.ID,
		weight:   cfg.ReliabilityWeight,
		url:      cfg.URL,
		minStars: intOption(cfg.Options, "minStars", 50),
		maxRepos: intOption(cfg.Options, "maxRepos", 10),
		client:   client,
		now:      time.Now,
	}
}

// SourceID identifies the adapter.
func (t *TrendingAdapter) SourceID() string { return t.sourceID }

// ReliabilityWeight reports how much this source's evidence counts.
func (t *TrendingAdapter) ReliabilityWeight() float64 { return t.weight }

// FetchSince scrapes the current trending snapshot. Trending pages carry no
// timestamps, so the cursor records the fetch time and filtering relies on
// the downstream fingerprint instead; refetching with the same cursor is a
// harmless superset.
func (t *TrendingAdapter) FetchSince(ctx context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	doc, err := fetchDocument(ctx, t.client, t.url)
	if err != nil {
		return nil, cursor, fmt.Errorf("%w: %v", domain.ErrSourceUnavailable, err)
	}

	now := t.now()
	items := t.extractRepos(doc, now)

	next := domain.Cursor{SourceID: t.sourceID, Position: now.UTC().Format(time.RFC3339)}
	if next.Position <= cursor.Position {
		next = cursor
	}
	return items, next, nil
}

// fetchDocument downloads an HTML page and hands it to goquery. Shared by
// the scraping adapters.
func fetchDocument(ctx context.Context, client *http.Client, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	return doc, nil
}

func (t *TrendingAdapter) extractRepos(doc *goquery.Document, now time.Time) []domain.RawItem {
	var items []domain.RawItem

	doc.Find("article.Box-row").EachWithBreak(func(i int, row *goquery.Selection) bool {
		if len(items) >= t.maxRepos {
			return false
		}

		item, err := parseRepoRow(row, t.sourceID, now)
		if err != nil {
			return true
		}
		if item.Score < t.minStars {
			return true
		}

		items = append(items, item)
		return true
	})

	return items
}

func parseRepoRow(row *goquery.Selection, sourceID string, now time.Time) (domain.RawItem, error) {
	name := strings.Join(strings.Fields(row.Find("h2").First().Text()), "")
	if name == "" {
		return domain.RawItem{}, fmt.Errorf("row has no repository name")
	}

	description := strings.TrimSpace(row.Find("p").First().Text())

	stars := 0
	row.Find("a").EachWithBreak(func(i int, link *goquery.Selection) bool {
		href, _ := link.Attr("href")
		if !strings.HasSuffix(href, "/stargazers") {
			return true
		}
		stars = parseStarCount(link.Text())
		return false
	})

	return domain.RawItem{
		SourceID:   sourceID,
		ExternalID: name,
		Title:      name,
		Body:       description,
		URL:        githubBaseURL + "/" + name,
		Score:      stars,
		FetchedAt:  now,
		PostedAt:   now,
	}, nil
}

func parseStarCount(text string) int {
	text = strings.TrimSpace(strings.ReplaceAll(text, ",", ""))
	if strings.HasSuffix(text, "k") {
		if v, err := strconv.ParseFloat(strings.TrimSuffix(text, "k"), 64); err == nil {
			return int(v * 1000)
		}
		return 0
	}
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0
	}
	return v
}
