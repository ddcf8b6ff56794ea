package config

import (
	"errors"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	configPathEnv   = "COURSE_AGENT_CONFIG"
	databasePathEnv = "COURSE_AGENT_DB"
	openAIKeyEnv    = "OPENAI_API_KEY"
	githubTokenEnv  = "GITHUB_TOKEN"
	githubRepoEnv   = "COURSE_REPO"
)

// Configuration validation errors.
var (
	ErrNoSources               = errors.New("at least one source is required")
	ErrSourceMissingID         = errors.New("source id is required")
	ErrSourceMissingKind       = errors.New("source kind is required")
	ErrSourceMissingURL        = errors.New("source url is required")
	ErrInvalidWeight           = errors.New("source reliability_weight must be in (0,1]")
	ErrInvalidRateRequests     = errors.New("governor.rate.requests must be at least 1")
	ErrInvalidMaxAttempts      = errors.New("governor.retry.max_attempts must be at least 1")
	ErrInvalidMultiplier       = errors.New("governor.retry.multiplier must be >= 1.0")
	ErrInvalidBreakerThreshold = errors.New("governor.breaker.threshold must be at least 1")
	ErrInvalidTopN             = errors.New("pipeline.top_n must be at least 1")
	ErrInvalidMinSignal        = errors.New("pipeline.min_signal must be in [0,1]")
	ErrInvalidMaxJobs          = errors.New("pipeline.max_concurrent_jobs must be at least 1")
	ErrInvalidMaxRetries       = errors.New("pipeline.max_retries_per_fingerprint must be at least 1")
	ErrInvalidRetention        = errors.New("pipeline.retention_days must be at least 1")
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Sources   []SourceConfig  `yaml:"sources"`
	Governor  GovernorConfig  `yaml:"governor"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Generator GeneratorConfig `yaml:"generator"`
	Publisher PublisherConfig `yaml:"publisher"`
}

// LoggingConfig selects log verbosity.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig locates the SQLite state file.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SchedulerConfig defines when cycles run.
type SchedulerConfig struct {
	IntervalHours int            `yaml:"intervalHours"`
	Timezone      string         `yaml:"timezone"`
	location      *time.Location `yaml:"-"`
}

// Interval resolves the cycle interval duration.
func (s SchedulerConfig) Interval() time.Duration {
	hours := s.IntervalHours
	if hours <= 0 {
		hours = 6
	}
	return time.Duration(hours) * time.Hour
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// SourceConfig describes a single content source and its adapter kind.
type SourceConfig struct {
	ID                string            `yaml:"id"`
	Kind              string            `yaml:"kind"`
	URL               string            `yaml:"url"`
	URLs              []string          `yaml:"urls"`
	ReliabilityWeight float64           `yaml:"reliabilityWeight"`
	Enabled           *bool             `yaml:"enabled"`
	Options           map[string]string `yaml:"options"`
}

// IsEnabled treats an unset flag as enabled.
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// GovernorConfig bounds how hard sources are driven.
type GovernorConfig struct {
	Rate    RateConfig    `yaml:"rate"`
	Retry   RetryConfig   `yaml:"retry"`
	Breaker BreakerConfig `yaml:"breaker"`
}

// RateConfig is the per-source token bucket: Requests per IntervalSec.
type RateConfig struct {
	Requests    int `yaml:"requests"`
	IntervalSec int `yaml:"intervalSec"`
}

// Interval returns the refill interval.
func (r RateConfig) Interval() time.Duration {
	sec := r.IntervalSec
	if sec <= 0 {
		sec = 1
	}
	return time.Duration(sec) * time.Second
}

// RetryConfig defines the bounded backoff schedule for transient failures.
type RetryConfig struct {
	MaxAttempts    int     `yaml:"maxAttempts"`
	InitialDelayMs int     `yaml:"initialDelayMs"`
	MaxDelayMs     int     `yaml:"maxDelayMs"`
	Multiplier     float64 `yaml:"multiplier"`
	JitterPercent  int     `yaml:"jitterPercent"`
}

// BreakerConfig sets the circuit breaker trip threshold.
type BreakerConfig struct {
	Threshold int `yaml:"threshold"`
}

// PipelineConfig tunes the orchestrator's scheduling and retention policy.
type PipelineConfig struct {
	CycleTimeoutMin          int     `yaml:"cycleTimeoutMin"`
	TopN                     int     `yaml:"topN"`
	MinSignal                float64 `yaml:"minSignal"`
	RetentionDays            int     `yaml:"retentionDays"`
	MaxConcurrentJobs        int     `yaml:"maxConcurrentJobs"`
	MaxRetriesPerFingerprint int     `yaml:"maxRetriesPerFingerprint"`
	FreshnessDays            int     `yaml:"freshnessDays"`
}

// CycleTimeout returns the per-cycle deadline.
func (p PipelineConfig) CycleTimeout() time.Duration {
	min := p.CycleTimeoutMin
	if min <= 0 {
		min = 20
	}
	return time.Duration(min) * time.Minute
}

// RetentionWindow returns how long insights stay eligible for generation.
func (p PipelineConfig) RetentionWindow() time.Duration {
	days := p.RetentionDays
	if days <= 0 {
		days = 14
	}
	return time.Duration(days) * 24 * time.Hour
}

// FreshnessWindow returns how old fetched items may be before adapters drop
// them.
func (p PipelineConfig) FreshnessWindow() time.Duration {
	days := p.FreshnessDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// GeneratorConfig defines how to contact the chapter-generation model.
type GeneratorConfig struct {
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"apiKey"`
	Version     string  `yaml:"version"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
}

// PublisherConfig wires the destination course repository.
type PublisherConfig struct {
	Repo        string `yaml:"repo"`
	Branch      string `yaml:"branch"`
	Token       string `yaml:"token"`
	BasePath    string `yaml:"basePath"`
	SummaryPath string `yaml:"summaryPath"`
	Workflow    string `yaml:"workflow"`
	APIBaseURL  string `yaml:"apiBaseUrl"`
}

// Load reads YAML configuration (if present) and applies environment
// overrides.
func Load() Config {
	return LoadFile(os.Getenv(configPathEnv))
}

// LoadFile is Load with an explicit config path. An empty path skips the
// file step and keeps defaults plus environment overrides.
func LoadFile(path string) Config {
	cfg := defaultConfig()

	if path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	if len(cfg.Sources) == 0 {
		cfg.Sources = defaultConfig().Sources
	}

	return cfg
}

// Validate checks the configuration invariants the pipeline depends on.
func (c Config) Validate() error {
	if len(c.Sources) == 0 {
		return ErrNoSources
	}
	for _, src := range c.Sources {
		if src.ID == "" {
			return ErrSourceMissingID
		}
		if src.Kind == "" {
			return ErrSourceMissingKind
		}
		if src.URL == "" && len(src.URLs) == 0 {
			return ErrSourceMissingURL
		}
		if src.ReliabilityWeight <= 0 || src.ReliabilityWeight > 1 {
			return ErrInvalidWeight
		}
	}

	if c.Governor.Rate.Requests < 1 {
		return ErrInvalidRateRequests
	}
	if c.Governor.Retry.MaxAttempts < 1 {
		return ErrInvalidMaxAttempts
	}
	if c.Governor.Retry.Multiplier < 1.0 {
		return ErrInvalidMultiplier
	}
	if c.Governor.Breaker.Threshold < 1 {
		return ErrInvalidBreakerThreshold
	}

	if c.Pipeline.TopN < 1 {
		return ErrInvalidTopN
	}
	if c.Pipeline.MinSignal < 0 || c.Pipeline.MinSignal > 1 {
		return ErrInvalidMinSignal
	}
	if c.Pipeline.MaxConcurrentJobs < 1 {
		return ErrInvalidMaxJobs
	}
	if c.Pipeline.MaxRetriesPerFingerprint < 1 {
		return ErrInvalidMaxRetries
	}
	if c.Pipeline.RetentionDays < 1 {
		return ErrInvalidRetention
	}

	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databasePathEnv); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv(openAIKeyEnv); v != "" {
		c.Generator.APIKey = v
	}

	if v := os.Getenv(githubTokenEnv); v != "" {
		c.Publisher.Token = v
	}

	if v := os.Getenv(githubRepoEnv); v != "" {
		c.Publisher.Repo = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging = override.Logging
	}

	if override.Database.Path != "" {
		base.Database = override.Database
	}

	if override.Scheduler.IntervalHours > 0 {
		base.Scheduler.IntervalHours = override.Scheduler.IntervalHours
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Governor.Rate.Requests > 0 {
		base.Governor.Rate = override.Governor.Rate
	}
	if override.Governor.Retry.MaxAttempts > 0 {
		base.Governor.Retry = override.Governor.Retry
	}
	if override.Governor.Breaker.Threshold > 0 {
		base.Governor.Breaker = override.Governor.Breaker
	}

	if override.Pipeline.TopN > 0 {
		base.Pipeline.TopN = override.Pipeline.TopN
	}
	if override.Pipeline.MinSignal > 0 {
		base.Pipeline.MinSignal = override.Pipeline.MinSignal
	}
	if override.Pipeline.RetentionDays > 0 {
		base.Pipeline.RetentionDays = override.Pipeline.RetentionDays
	}
	if override.Pipeline.MaxConcurrentJobs > 0 {
		base.Pipeline.MaxConcurrentJobs = override.Pipeline.MaxConcurrentJobs
	}
	if override.Pipeline.MaxRetriesPerFingerprint > 0 {
		base.Pipeline.MaxRetriesPerFingerprint = override.Pipeline.MaxRetriesPerFingerprint
	}
	if override.Pipeline.CycleTimeoutMin > 0 {
		base.Pipeline.CycleTimeoutMin = override.Pipeline.CycleTimeoutMin
	}
	if override.Pipeline.FreshnessDays > 0 {
		base.Pipeline.FreshnessDays = override.Pipeline.FreshnessDays
	}

	if override.Generator.Model != "" {
		base.Generator.Model = override.Generator.Model
	}
	if override.Generator.APIKey != "" {
		base.Generator.APIKey = override.Generator.APIKey
	}
	if override.Generator.Version != "" {
		base.Generator.Version = override.Generator.Version
	}
	if override.Generator.MaxTokens > 0 {
		base.Generator.MaxTokens = override.Generator.MaxTokens
	}
	if override.Generator.Temperature > 0 {
		base.Generator.Temperature = override.Generator.Temperature
	}

	if override.Publisher.Repo != "" {
		base.Publisher.Repo = override.Publisher.Repo
	}
	if override.Publisher.Branch != "" {
		base.Publisher.Branch = override.Publisher.Branch
	}
	if override.Publisher.Token != "" {
		base.Publisher.Token = override.Publisher.Token
	}
	if override.Publisher.BasePath != "" {
		base.Publisher.BasePath = override.Publisher.BasePath
	}
	if override.Publisher.SummaryPath != "" {
		base.Publisher.SummaryPath = override.Publisher.SummaryPath
	}
	if override.Publisher.Workflow != "" {
		base.Publisher.Workflow = override.Publisher.Workflow
	}
	if override.Publisher.APIBaseURL != "" {
		base.Publisher.APIBaseURL = override.Publisher.APIBaseURL
	}

	if len(override.Sources) > 0 {
		base.Sources = override.Sources
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:  LoggingConfig{Level: "info"},
		Database: DatabaseConfig{Path: "course-agent.db"},
		Scheduler: SchedulerConfig{
			IntervalHours: 6,
			Timezone:      defaultTimezone,
			location:      tz,
		},
		Governor: GovernorConfig{
			Rate:    RateConfig{Requests: 4, IntervalSec: 1},
			Retry:   RetryConfig{MaxAttempts: 3, InitialDelayMs: 500, MaxDelayMs: 8000, Multiplier: 2.0, JitterPercent: 20},
			Breaker: BreakerConfig{Threshold: 3},
		},
		Pipeline: PipelineConfig{
			CycleTimeoutMin:          20,
			TopN:                     5,
			MinSignal:                0.2,
			RetentionDays:            14,
			MaxConcurrentJobs:        2,
			MaxRetriesPerFingerprint: 3,
			FreshnessDays:            7,
		},
		Generator: GeneratorConfig{
			Model:       "gpt-4o-mini",
			Version:     "v1",
			MaxTokens:   4000,
			Temperature: 0.4,
		},
		Publisher: PublisherConfig{
			Repo:        "AdityaJorim007/swift-2026-course",
			Branch:      "main",
			BasePath:    "book/src/auto-generated",
			SummaryPath: "book/src/SUMMARY.md",
			Workflow:    "deploy.yml",
		},
		Sources: []SourceConfig{
			{
				ID:   "youtube-swift",
				Kind: "feed",
				URLs: []string{
					"https://www.youtube.com/feeds/videos.xml?channel_id=UC2D6eRvCeMtcF5OGHf1-trw",
					"https://www.youtube.com/feeds/videos.xml?channel_id=UCuP2vJ6kRutQBfRmdcI92mA",
					"https://www.youtube.com/feeds/videos.xml?channel_id=UC_7ZKZSqtXAcbmhEzVyg8Pw",
				},
				ReliabilityWeight: 0.8,
			},
			{
				ID:                "swift-blog",
				Kind:              "feed",
				URL:               "https://swift.org/blog/feed.xml",
				ReliabilityWeight: 1.0,
				Options:           map[string]string{"freshnessDays": "30"},
			},
			{
				ID:                "apple-docs",
				Kind:              "docs",
				URL:               "https://developer.apple.com/documentation/updates/",
				ReliabilityWeight: 1.0,
			},
			{
				ID:                "github-trending",
				Kind:              "trending",
				URL:               "https://github.com/trending/swift",
				ReliabilityWeight: 0.7,
				Options:           map[string]string{"minStars": "50"},
			},
			{
				ID:                "reddit-ios",
				Kind:              "reddit",
				URLs:              []string{"r/iOSProgramming", "r/swift"},
				ReliabilityWeight: 0.5,
				Options:           map[string]string{"minScore": "10", "limit": "10"},
			},
		},
	}
}
