// Package app assembles the content pipeline from configuration.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/AdityaJorim007/swift-2026-course/internal/config"
	"github.com/AdityaJorim007/swift-2026-course/internal/domain"
	"github.com/AdityaJorim007/swift-2026-course/internal/extract"
	"github.com/AdityaJorim007/swift-2026-course/internal/governor"
	"github.com/AdityaJorim007/swift-2026-course/internal/infrastructure/generator"
	"github.com/AdityaJorim007/swift-2026-course/internal/infrastructure/publisher"
	"github.com/AdityaJorim007/swift-2026-course/internal/infrastructure/scheduler"
	"github.com/AdityaJorim007/swift-2026-course/internal/infrastructure/sources"
	"github.com/AdityaJorim007/swift-2026-course/internal/infrastructure/storage"
	"github.com/AdityaJorim007/swift-2026-course/internal/source"
	"github.com/AdityaJorim007/swift-2026-course/internal/usecase"
)

// App owns the assembled pipeline and its backing store.
type App struct {
	cfg      config.Config
	logger   *slog.Logger
	store    *storage.Store
	pipeline *usecase.Pipeline
	trigger  *usecase.Trigger
}

// New wires the full dependency graph. The returned App holds the open
// store; call Close when done.
func New(cfg config.Config, logger *slog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	store, err := storage.Open(cfg.Database.Path, cfg.Pipeline.RetentionWindow())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := source.NewRegistry()
	sources.RegisterAll(registry, httpClient)

	adapters, err := registry.Build(cfg.Sources)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("build sources: %w", err)
	}

	weights := make(map[string]float64, len(cfg.Sources))
	for _, src := range cfg.Sources {
		weights[src.ID] = src.ReliabilityWeight
	}

	policy := domain.ScoringPolicy{RecencyHalfLife: cfg.Pipeline.FreshnessWindow() / 2}
	extractor := extract.New(policy, weights, logger.With("component", "extractor"))

	gov := governor.New(cfg.Governor, logger.With("component", "governor"))
	gen := generator.New(cfg.Generator)
	pub := publisher.New(cfg.Publisher, logger.With("component", "publisher"))

	admission := usecase.NewAdmission(
		gen.Version(),
		cfg.Pipeline.MaxConcurrentJobs,
		cfg.Pipeline.MaxRetriesPerFingerprint,
		store,
		logger.With("component", "admission"),
	)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Adapters:     adapters,
		Governor:     gov,
		Extractor:    extractor,
		Insights:     store,
		State:        store,
		Generator:    gen,
		Publisher:    pub,
		Admission:    admission,
		Logger:       logger.With("component", "pipeline"),
		CycleTimeout: cfg.Pipeline.CycleTimeout(),
		TopN:         cfg.Pipeline.TopN,
		MinSignal:    cfg.Pipeline.MinSignal,
		MaxJobs:      cfg.Pipeline.MaxConcurrentJobs,
	})

	driver := scheduler.NewIntervalScheduler(cfg.Scheduler.Interval(), cfg.Scheduler.Location())
	trigger := usecase.NewTrigger(driver, pipeline, logger.With("component", "trigger"))

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		pipeline: pipeline,
		trigger:  trigger,
	}, nil
}

// RunOnce executes a single pipeline cycle and returns its summary.
func (a *App) RunOnce(ctx context.Context) (domain.CycleSummary, error) {
	return a.pipeline.RunCycle(ctx, time.Now())
}

// Serve runs cycles on the configured interval until the context ends.
func (a *App) Serve(ctx context.Context) error {
	if err := a.trigger.Start(ctx); err != nil {
		return fmt.Errorf("start trigger: %w", err)
	}
	a.logger.Info("agent started", "interval", a.cfg.Scheduler.Interval().String())

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.trigger.Stop(stopCtx); err != nil {
		a.logger.Warn("trigger stop failed", "error", err)
	}

	return nil
}

// Close releases the backing store.
func (a *App) Close() error {
	return a.store.Close()
}
