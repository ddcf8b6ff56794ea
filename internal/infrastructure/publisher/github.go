// Package publisher commits generated chapters to the course repository via
// the GitHub contents API and triggers the deploy workflow.
package publisher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const defaultAPIBaseURL = "https://api.github.com"

// GitHubPublisher writes chapter files into a repository branch. The chapter
// path is derived from the fingerprint, so publishing the same fingerprint
// twice overwrites the same file with the same content.
type GitHubPublisher struct {
	repo        string
	branch      string
	token       string
	basePath    string
	summaryPath string
	workflow    string
	apiBaseURL  string
	client      *http.Client
	logger      *slog.Logger
}

var _ ports.Publisher = (*GitHubPublisher)(nil)

// New builds a publisher from configuration.
func New(cfg config.PublisherConfig, logger *slog.Logger) *GitHubPublisher {
	apiBaseURL := cfg.APIBaseURL
	if apiBaseURL == "" {
		apiBaseURL = defaultAPIBaseURL
	}
	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &GitHubPublisher{
		repo:        cfg.Repo,
		branch:      branch,
		token:       cfg.Token,
		basePath:    strings.Trim(cfg.BasePath, "/"),
		summaryPath: strings.Trim(cfg.SummaryPath, "/"),
		workflow:    cfg.Workflow,
		apiBaseURL:  strings.TrimSuffix(apiBaseURL, "/"),
		client:      &http.Client{Timeout: 30 * time.Second},
		logger:      logger,
	}
}

// Publish commits the artifact. The content file write is the publish
// operation proper; the summary update and deploy dispatch are best-effort
// follow-ups once the content is durable.
func (p *GitHubPublisher) Publish(ctx context.Context, artifact domain.Artifact) (domain.PublishReceipt, error) {
	if p.repo == "" || p.token == "" {
		return domain.PublishReceipt{}, fmt.Errorf("publisher misconfigured: repo and token required")
	}

	path := p.chapterPath(artifact)
	message := fmt.Sprintf("Auto-generate: %s chapter", artifact.TopicKey)
	if err := p.putFile(ctx, path, message, artifact.Body); err != nil {
		return domain.PublishReceipt{}, fmt.Errorf("commit chapter: %w", err)
	}

	if err := p.updateSummary(ctx, artifact, path); err != nil {
		p.warn("summary update failed", "path", p.summaryPath, "error", err)
	}

	if err := p.dispatchDeploy(ctx); err != nil {
		p.warn("deploy dispatch failed", "workflow", p.workflow, "error", err)
	}

	return domain.PublishReceipt{
		Fingerprint: artifact.Fingerprint,
		Path:        path,
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (p *GitHubPublisher) chapterPath(artifact domain.Artifact) string {
	fp := artifact.Fingerprint
	if len(fp) > 8 {
		fp = fp[:8]
	}
	return fmt.Sprintf("%s/chapter_%s_%s.md", p.basePath, artifact.TopicKey, fp)
}

// putFile creates or updates a file on the branch. An existing file is
// looked up first for its blob SHA, which the contents API requires on
// update.
func (p *GitHubPublisher) putFile(ctx context.Context, path, message, content string) error {
	sha, _, err := p.getFile(ctx, path)
	if err != nil {
		return err
	}

	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  p.branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal contents payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/contents/%s", p.apiBaseURL, p.repo, path)
	resp, err := p.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("put contents", resp)
	}
	return nil
}

// getFile returns the blob SHA and decoded content of a file, or empty
// values when the file does not exist.
func (p *GitHubPublisher) getFile(ctx context.Context, path string) (sha, content string, err error) {
	url := fmt.Sprintf("%s/repos/%s/contents/%s?ref=%s", p.apiBaseURL, p.repo, path, p.branch)
	resp, err := p.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", "", apiError("get contents", resp)
	}

	var file struct {
		SHA     string `json:"sha"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return "", "", fmt.Errorf("decode contents response: %w", err)
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(file.Content, "\n", ""))
	if err != nil {
		return "", "", fmt.Errorf("decode file content: %w", err)
	}

	return file.SHA, string(decoded), nil
}

// updateSummary appends the chapter link to SUMMARY.md unless it is already
// listed.
func (p *GitHubPublisher) updateSummary(ctx context.Context, artifact domain.Artifact, chapterPath string) error {
	if p.summaryPath == "" {
		return nil
	}

	sha, current, err := p.getFile(ctx, p.summaryPath)
	if err != nil {
		return err
	}

	relative := chapterPath
	if dir := p.summaryDir(); dir != "" && strings.HasPrefix(chapterPath, dir+"/") {
		relative = "./" + strings.TrimPrefix(chapterPath, dir+"/")
	}

	line := fmt.Sprintf("- [%s](%s)\n", artifact.Title, relative)
	if strings.Contains(current, relative) {
		return nil
	}

	const heading = "# Auto-Generated Content"
	if !strings.Contains(current, heading) {
		if current != "" && !strings.HasSuffix(current, "\n") {
			current += "\n"
		}
		current += "\n" + heading + "\n\n"
	}
	current += line

	message := fmt.Sprintf("Auto-update: add %s chapter to summary", artifact.TopicKey)
	return p.putFileWithSHA(ctx, p.summaryPath, message, current, sha)
}

func (p *GitHubPublisher) putFileWithSHA(ctx context.Context, path, message, content, sha string) error {
	payload := map[string]string{
		"message": message,
		"content": base64.StdEncoding.EncodeToString([]byte(content)),
		"branch":  p.branch,
	}
	if sha != "" {
		payload["sha"] = sha
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal contents payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/contents/%s", p.apiBaseURL, p.repo, path)
	resp, err := p.do(ctx, http.MethodPut, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return apiError("put contents", resp)
	}
	return nil
}

func (p *GitHubPublisher) dispatchDeploy(ctx context.Context) error {
	if p.workflow == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"ref": p.branch})
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}

	url := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", p.apiBaseURL, p.repo, p.workflow)
	resp, err := p.do(ctx, http.MethodPost, url, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		return apiError("workflow dispatch", resp)
	}
	return nil
}

func (p *GitHubPublisher) summaryDir() string {
	idx := strings.LastIndex(p.summaryPath, "/")
	if idx < 0 {
		return ""
	}
	return p.summaryPath[:idx]
}

func (p *GitHubPublisher) do(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	return resp, nil
}

func apiError(op string, resp *http.Response) error {
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	return fmt.Errorf("%s: github returned %s: %s", op, resp.Status, strings.TrimSpace(string(payload)))
}

func (p *GitHubPublisher) warn(msg string, args ...any) {
	if p.logger != nil {
		p.logger.Warn(msg, args...)
	}
}
