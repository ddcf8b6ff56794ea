package sources

import (
	"net/http"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
	"github.com/AdityaJorim007/swift-2026-course/internal/source"
)

// RegisterAll wires every adapter kind into the registry.
func RegisterAll(registry *source.Registry, client *http.Client) {
	registry.Register("feed", func(cfg config.SourceConfig) (ports.SourceAdapter, error) {
		return NewFeedAdapter(cfg, client), nil
	})
	registry.Register("reddit", func(cfg config.SourceConfig) (ports.SourceAdapter, error) {
		return NewRedditAdapter(cfg, client), nil
	})
	registry.Register("trending", func(cfg config.SourceConfig) (ports.SourceAdapter, error) {
		return NewTrendingAdapter(cfg, client), nil
	})
	registry.Register("docs", func(cfg config.SourceConfig) (ports.SourceAdapter, error) {
		return NewDocsAdapter(cfg, client), nil
	})
}
