// Package generator produces course chapters with an OpenAI-compatible
// model.
package generator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

const systemPrompt = "You are an expert Swift/iOS instructor writing production-focused " +
	"course material. Write practical markdown chapters with working code examples, " +
	"performance guidance, and business impact."

// OpenAIGenerator implements the chapter generator against the OpenAI chat
// completions API.
type OpenAIGenerator struct {
	client      openai.Client
	model       string
	version     string
	maxTokens   int
	temperature float64
}

var _ ports.Generator = (*OpenAIGenerator)(nil)

// New builds a generator from configuration.
func New(cfg config.GeneratorConfig, opts ...option.RequestOption) *OpenAIGenerator {
	allOpts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, opts...)

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4000
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.4
	}

	return &OpenAIGenerator{
		client:      openai.NewClient(allOpts...),
		model:       model,
		version:     cfg.Version,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

// Version participates in content fingerprints: bumping it re-opens every
// topic for regeneration.
func (g *OpenAIGenerator) Version() string {
	if g.version == "" {
		return "v1"
	}
	return g.version
}

// Generate writes one chapter for the job's topic.
func (g *OpenAIGenerator) Generate(ctx context.Context, job domain.GenerationJob) (domain.Artifact, error) {
	prompt := buildPrompt(job)

	response, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: g.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			{
				OfSystem: &openai.ChatCompletionSystemMessageParam{
					Content: openai.ChatCompletionSystemMessageParamContentUnion{
						OfString: openai.String(systemPrompt),
					},
				},
			},
			{
				OfUser: &openai.ChatCompletionUserMessageParam{
					Content: openai.ChatCompletionUserMessageParamContentUnion{
						OfString: openai.String(prompt),
					},
				},
			},
		},
		Temperature: openai.Float(g.temperature),
		MaxTokens:   openai.Int(int64(g.maxTokens)),
	})
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(response.Choices) == 0 {
		return domain.Artifact{}, fmt.Errorf("model returned no choices")
	}

	body := strings.TrimSpace(response.Choices[0].Message.Content)
	if body == "" {
		return domain.Artifact{}, fmt.Errorf("model returned empty chapter")
	}

	return domain.Artifact{
		TopicKey:    job.TopicKey,
		Fingerprint: job.Fingerprint,
		Title:       chapterTitle(body, job.TopicKey),
		Body:        body,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func buildPrompt(job domain.GenerationJob) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a new course chapter about %q for a production Swift/iOS course.\n\n", job.TopicKey)
	if job.Insight.Summary != "" {
		fmt.Fprintf(&b, "The community is currently discussing: %s\n", job.Insight.Summary)
	}
	fmt.Fprintf(&b, "This topic was corroborated by %d recent items.\n\n", len(job.Insight.EvidenceRefs))
	b.WriteString("Requirements:\n")
	b.WriteString("- Practical, production-ready markdown with working Swift code examples\n")
	b.WriteString("- Cover the latest APIs and measurable performance outcomes\n")
	b.WriteString("- Address monetization or user-retention impact where relevant\n")
	b.WriteString("- Start with a single H1 title line\n")
	return b.String()
}

// chapterTitle takes the first H1 heading or falls back to the topic.
func chapterTitle(body, topicKey string) string {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "# "))
		}
	}
	return strings.ToUpper(topicKey[:1]) + topicKey[1:]
}
