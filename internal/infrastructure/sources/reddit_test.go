package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

func redditListingJSON(posts ...string) string {
	children := ""
	for i, p := range posts {
		if i > 0 {
			children += ","
		}
		children += `{"data":` + p + `}`
	}
	return `{"data":{"children":[` + children + `]}}`
}

func redditPostJSON(name, title string, score int, createdUTC int64) string {
	return fmt.Sprintf(
		`{"name":%q,"title":%q,"selftext":"","permalink":"/r/swift/comments/%s/","score":%d,"num_comments":3,"created_utc":%d}`,
		name, title, name, score, createdUTC)
}

func TestRedditAdapterFetch(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 28, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/r/swift/hot.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, redditListingJSON(
			redditPostJSON("t3_aaa", "Actors explained", 42, created.Unix()),
			redditPostJSON("t3_bbb", "Low effort post", 3, created.Unix()),
		))
	}))
	t.Cleanup(srv.Close)

	adapter := NewRedditAdapter(config.SourceConfig{
		ID: "reddit-swift", URLs: []string{"r/swift"}, ReliabilityWeight: 0.5,
		Options: map[string]string{"baseUrl": srv.URL, "minScore": "10"},
	}, srv.Client())
	adapter.now = testClock()

	items, next, err := adapter.FetchSince(context.Background(), domain.Cursor{})
	if err != nil {
		t.Fatalf("FetchSince: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("got %d items, want the score filter to keep one: %+v", len(items), items)
	}
	if items[0].ExternalID != "t3_aaa" || items[0].Score != 42 {
		t.Fatalf("item = %+v", items[0])
	}
	if !items[0].PostedAt.Equal(created) {
		t.Fatalf("posted at = %v, want %v", items[0].PostedAt, created)
	}
	if next.Position != created.Format(time.RFC3339) {
		t.Fatalf("cursor = %q", next.Position)
	}
}

func TestRedditAdapterSkipsOldPosts(t *testing.T) {
	t.Parallel()

	created := time.Date(2026, 2, 20, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, redditListingJSON(
			redditPostJSON("t3_ccc", "Stale discussion", 99, created.Unix()),
		))
	}))
	t.Cleanup(srv.Close)

	adapter := NewRedditAdapter(config.SourceConfig{
		ID: "reddit-swift", URLs: []string{"r/swift"}, ReliabilityWeight: 0.5,
		Options: map[string]string{"baseUrl": srv.URL},
	}, srv.Client())
	adapter.now = testClock()

	cursor := domain.Cursor{SourceID: "reddit-swift", Position: "2026-02-25T00:00:00Z"}
	items, next, err := adapter.FetchSince(context.Background(), cursor)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Fatalf("post older than cursor returned: %+v", items)
	}
	if next.Position != cursor.Position {
		t.Fatalf("cursor moved without new items: %q", next.Position)
	}
}

func TestRedditAdapterUnavailable(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	adapter := NewRedditAdapter(config.SourceConfig{
		ID: "reddit-swift", URLs: []string{"r/swift"}, ReliabilityWeight: 0.5,
		Options: map[string]string{"baseUrl": srv.URL},
	}, srv.Client())

	_, _, err := adapter.FetchSince(context.Background(), domain.Cursor{})
	if !errors.Is(err, domain.ErrSourceUnavailable) {
		t.Fatalf("err = %v, want ErrSourceUnavailable", err)
	}
}
