package source

import (
	"context"
	"strings"
	"testing"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/ports"
)

type stubAdapter struct {
	id string
}

func (s *stubAdapter) SourceID() string           { return s.id }
func (s *stubAdapter) ReliabilityWeight() float64 { return 1 }

func (s *stubAdapter) FetchSince(context.Context, domain.Cursor) ([]domain.RawItem, domain.Cursor, error) {
	return nil, domain.Cursor{}, nil
}

func TestRegistryBuild(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Register("stub", func(cfg config.SourceConfig) (ports.SourceAdapter, error) {
		return &stubAdapter{id: cfg.ID}, nil
	})

	off := false
	adapters, err := registry.Build([]config.SourceConfig{
		{ID: "one", Kind: "stub", URL: "x", ReliabilityWeight: 1},
		{ID: "two", Kind: "stub", URL: "x", ReliabilityWeight: 1, Enabled: &off},
		{ID: "three", Kind: "stub", URL: "x", ReliabilityWeight: 1},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if len(adapters) != 2 {
		t.Fatalf("got %d adapters, want disabled source skipped", len(adapters))
	}
	if adapters[0].SourceID() != "one" || adapters[1].SourceID() != "three" {
		t.Fatalf("adapters = %v, %v", adapters[0].SourceID(), adapters[1].SourceID())
	}
}

func TestRegistryUnknownKind(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Build([]config.SourceConfig{
		{ID: "mystery", Kind: "telepathy", URL: "x", ReliabilityWeight: 1},
	})
	if err == nil {
		t.Fatal("unknown kind accepted")
	}
	if !strings.Contains(err.Error(), "mystery") {
		t.Fatalf("error does not name the source: %v", err)
	}
}
