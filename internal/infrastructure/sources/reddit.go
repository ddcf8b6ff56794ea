package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const defaultRedditBaseURL = "https://www.reddit.com"

// RedditAdapter pulls hot posts from one or more subreddits.
type RedditAdapter struct {
	sourceID   string
	weight     float64
	subreddits []string
	baseURL    string
	limit      int
	minScore   int
	client     *http.Client
	now        func() time.Time
}

var _ ports.SourceAdapter = (*RedditAdapter)(nil)

// NewRedditAdapter builds a Reddit adapter from its config entry. The URLs
// list holds subreddit paths like "r/swift". Recognized options: limit
// (default 10), minScore (default 10), baseUrl (tests).
func NewRedditAdapter(cfg config.SourceConfig, client *http.Client) *RedditAdapter {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}

	subs := cfg.URLs
	if len(subs) == 0 && cfg.URL != "" {
		subs = []string{cfg.URL}
	}

	baseURL := defaultRedditBaseURL
	if v, ok := cfg.Options["baseUrl"]; ok && v != "" {
		baseURL = strings.TrimSuffix(v, "/")
	}

	return &RedditAdapter{
		sourceID:   cfg.ID,
		weight:     cfg.ReliabilityWeight,
		subreddits: subs,
		baseURL:    baseURL,
		limit:      intOption(cfg.Options, "limit", 10),
		minScore:   intOption(cfg.Options, "minScore", 10),
		client:     client,
		now:        time.Now,
	}
}

// SourceID identifies the adapter.
func (r *RedditAdapter) SourceID() string { return r.sourceID }

// ReliabilityWeight reports how much this source's evidence counts.
func (r *RedditAdapter) ReliabilityWeight() float64 { return r.weight }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	Name        string  `json:"name"`
	Title       string  `json:"title"`
	SelfText    string  `json:"selftext"`
	Permalink   string  `json:"permalink"`
	Score       int     `json:"score"`
	NumComments int     `json:"num_comments"`
	CreatedUTC  float64 `json:"created_utc"`
}

// FetchSince returns hot posts newer than the cursor that clear the score
// threshold.
func (r *RedditAdapter) FetchSince(ctx context.Context, cursor domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	since := cursorTime(cursor)
	now := r.now()

	var items []domain.RawItem
	for _, sub := range r.subreddits {
		url := fmt.Sprintf("%s/%s/hot.json?limit=%d", r.baseURL, strings.Trim(sub, "/"), r.limit)

		raw, err := fetchBody(ctx, r.client, url)
		if err != nil {
			return nil, cursor, fmt.Errorf("%w: fetch %s: %v", domain.ErrSourceUnavailable, sub, err)
		}

		var listing redditListing
		if err := json.Unmarshal(raw, &listing); err != nil {
			return nil, cursor, fmt.Errorf("parse listing %s: %w", sub, err)
		}

		for _, child := range listing.Data.Children {
			post := child.Data
			if post.Score < r.minScore {
				continue
			}

			created := time.Unix(int64(post.CreatedUTC), 0).UTC()
			if created.Before(since) {
				continue
			}

			items = append(items, domain.RawItem{
				SourceID:   r.sourceID,
				ExternalID: post.Name,
				Title:      post.Title,
				Body:       post.SelfText,
				URL:        defaultRedditBaseURL + post.Permalink,
				Score:      post.Score,
				FetchedAt:  now,
				PostedAt:   created,
			})
		}
	}

	next := advanceCursor(cursor, r.sourceID, items)
	return items, next, nil
}
