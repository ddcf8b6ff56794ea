package source

import (
	"fmt"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

// Factory builds a source adapter from its configuration entry.
type Factory func(cfg config.SourceConfig) (ports.SourceAdapter, error)

// Registry keeps a mapping from adapter kinds to their factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// Register adds or replaces a factory for the given adapter kind.
func (r *Registry) Register(kind string, factory Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[kind] = factory
}

// Resolve returns a factory by kind or an error if it is absent.
func (r *Registry) Resolve(kind string) (Factory, error) {
	if factory, ok := r.factories[kind]; ok {
		return factory, nil
	}
	return nil, fmt.Errorf("source kind %s is not registered", kind)
}

// Build instantiates adapters for every enabled source entry.
func (r *Registry) Build(sources []config.SourceConfig) ([]ports.SourceAdapter, error) {
	adapters := make([]ports.SourceAdapter, 0, len(sources))
	for _, cfg := range sources {
		if !cfg.IsEnabled() {
			continue
		}

		factory, err := r.Resolve(cfg.Kind)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
		}

		adapter, err := factory(cfg)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.ID, err)
		}
		adapters = append(adapters, adapter)
	}

	return adapters, nil
}
