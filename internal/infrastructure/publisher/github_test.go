package publisher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
)

// fakeGitHub is an in-memory contents API good enough for publish flows.
type fakeGitHub struct {
	mu         sync.Mutex
	files      map[string]string // path -> content
	dispatches int
	failPuts   bool
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{files: map[string]string{}}
}

func (f *fakeGitHub) handler(t *testing.T) http.Handler {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/repos/octocat/course/contents/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/repos/octocat/course/contents/")

		f.mu.Lock()
		defer f.mu.Unlock()

		switch r.Method {
		case http.MethodGet:
			content, ok := f.files[path]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"sha":     "sha-" + path,
				"content": base64.StdEncoding.EncodeToString([]byte(content)),
			})

		case http.MethodPut:
			if f.failPuts {
				http.Error(w, `{"message":"validation failed"}`, http.StatusUnprocessableEntity)
				return
			}
			var payload struct {
				Content string `json:"content"`
				SHA     string `json:"sha"`
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if _, exists := f.files[path]; exists && payload.SHA == "" {
				http.Error(w, `{"message":"sha required"}`, http.StatusConflict)
				return
			}
			decoded, err := base64.StdEncoding.DecodeString(payload.Content)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			status := http.StatusCreated
			if _, exists := f.files[path]; exists {
				status = http.StatusOK
			}
			f.files[path] = string(decoded)
			w.WriteHeader(status)
			_ = json.NewEncoder(w).Encode(map[string]any{"content": map[string]string{"path": path}})

		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})

	mux.HandleFunc("/repos/octocat/course/actions/workflows/deploy.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		f.mu.Lock()
		f.dispatches++
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (f *fakeGitHub) file(path string) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	return content, ok
}

func newTestPublisher(t *testing.T, gh *fakeGitHub) *GitHubPublisher {
	t.Helper()
	srv := httptest.NewServer(gh.handler(t))
	t.Cleanup(srv.Close)

	return New(config.PublisherConfig{
		Repo:        "octocat/course",
		Branch:      "main",
		Token:       "ghp-test",
		BasePath:    "book/src/auto-generated",
		SummaryPath: "book/src/SUMMARY.md",
		Workflow:    "deploy.yml",
		APIBaseURL:  srv.URL,
	}, nil)
}

func testArtifact() domain.Artifact {
	return domain.Artifact{
		TopicKey:    "swiftui",
		Fingerprint: "abcdef1234567890",
		Title:       "SwiftUI Navigation",
		Body:        "# SwiftUI Navigation\n\nChapter body.",
	}
}

func TestPublishCreatesChapterAndSummary(t *testing.T) {
	t.Parallel()

	gh := newFakeGitHub()
	gh.files["book/src/SUMMARY.md"] = "# Summary\n\n- [Intro](./intro.md)\n"
	pub := newTestPublisher(t, gh)

	receipt, err := pub.Publish(context.Background(), testArtifact())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	wantPath := "book/src/auto-generated/chapter_swiftui_abcdef12.md"
	if receipt.Path != wantPath {
		t.Fatalf("receipt path = %q, want %q", receipt.Path, wantPath)
	}
	if receipt.Fingerprint != "abcdef1234567890" {
		t.Fatalf("receipt fingerprint = %q", receipt.Fingerprint)
	}

	chapter, ok := gh.file(wantPath)
	if !ok {
		t.Fatal("chapter file not committed")
	}
	if !strings.Contains(chapter, "Chapter body.") {
		t.Fatalf("chapter content = %q", chapter)
	}

	summary, _ := gh.file("book/src/SUMMARY.md")
	if !strings.Contains(summary, "# Auto-Generated Content") {
		t.Fatalf("summary missing heading: %q", summary)
	}
	if !strings.Contains(summary, "[SwiftUI Navigation](./auto-generated/chapter_swiftui_abcdef12.md)") {
		t.Fatalf("summary missing chapter link: %q", summary)
	}
	if !strings.Contains(summary, "[Intro](./intro.md)") {
		t.Fatalf("existing summary content lost: %q", summary)
	}

	if gh.dispatches != 1 {
		t.Fatalf("deploy dispatches = %d, want 1", gh.dispatches)
	}
}

func TestPublishIsIdempotent(t *testing.T) {
	t.Parallel()

	gh := newFakeGitHub()
	gh.files["book/src/SUMMARY.md"] = "# Summary\n"
	pub := newTestPublisher(t, gh)

	if _, err := pub.Publish(context.Background(), testArtifact()); err != nil {
		t.Fatalf("first publish: %v", err)
	}
	if _, err := pub.Publish(context.Background(), testArtifact()); err != nil {
		t.Fatalf("second publish: %v", err)
	}

	summary, _ := gh.file("book/src/SUMMARY.md")
	link := "chapter_swiftui_abcdef12.md"
	if strings.Count(summary, link) != 1 {
		t.Fatalf("summary link duplicated:\n%s", summary)
	}
}

func TestPublishFailsWhenContentRejected(t *testing.T) {
	t.Parallel()

	gh := newFakeGitHub()
	gh.failPuts = true
	pub := newTestPublisher(t, gh)

	if _, err := pub.Publish(context.Background(), testArtifact()); err == nil {
		t.Fatal("publish succeeded despite rejected commit")
	}
}

func TestPublishSurvivesSummaryFailure(t *testing.T) {
	t.Parallel()

	gh := newFakeGitHub()
	pub := newTestPublisher(t, gh)

	// No SUMMARY.md exists; the fake requires a sha only for updates, so the
	// summary append creates the file. Remove the workflow route by pointing
	// at a missing one instead: dispatch failure must not fail the publish.
	pub.workflow = "missing.yml"

	receipt, err := pub.Publish(context.Background(), testArtifact())
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if receipt.Path == "" {
		t.Fatal("no receipt for committed chapter")
	}
}

func TestPublishRequiresConfiguration(t *testing.T) {
	t.Parallel()

	pub := New(config.PublisherConfig{}, nil)
	if _, err := pub.Publish(context.Background(), testArtifact()); err == nil {
		t.Fatal("unconfigured publisher accepted an artifact")
	}
}
