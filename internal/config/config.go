// Package config loads process configuration from the environment.
//
// Values are read once at startup and passed into constructors; nothing in
// the search or telemetry paths reads the environment directly.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every tunable of the campaignsearch binary
type Config struct {
	DBPath  string `env:"CAMPAIGNSEARCH_DB_PATH" envDefault:"~/.campaignsearch/campaigns.db"`
	LogMode string `env:"CAMPAIGNSEARCH_LOG_MODE" envDefault:"development"`

	// Embedding
	EmbeddingProvider  string `env:"CAMPAIGNSEARCH_EMBEDDING_PROVIDER"`
	EmbeddingModel     string `env:"CAMPAIGNSEARCH_EMBEDDING_MODEL"`
	EmbeddingCacheSize int    `env:"CAMPAIGNSEARCH_EMBEDDING_CACHE_SIZE" envDefault:"10000"`
	JinaAPIKey         string `env:"JINA_API_KEY"`
	OpenAIAPIKey       string `env:"OPENAI_API_KEY"`
	OpenAIBaseURL      string `env:"OPENAI_BASE_URL"`

	// Search
	RRFConstant               float64 `env:"CAMPAIGNSEARCH_RRF_K" envDefault:"60"`
	OverFetchFactor           int     `env:"CAMPAIGNSEARCH_OVERFETCH_FACTOR" envDefault:"3"`
	MinOverFetch              int     `env:"CAMPAIGNSEARCH_MIN_OVERFETCH" envDefault:"30"`
	MaxCandidates             int     `env:"CAMPAIGNSEARCH_MAX_CANDIDATES" envDefault:"200"`
	DegradeOnEmbeddingFailure bool    `env:"CAMPAIGNSEARCH_DEGRADE_ON_EMBEDDING_FAILURE" envDefault:"false"`

	// Telemetry
	MetricsSampleRate float64       `env:"CAMPAIGNSEARCH_METRICS_SAMPLE_RATE" envDefault:"0.1"`
	MetricsTimeout    time.Duration `env:"CAMPAIGNSEARCH_METRICS_TIMEOUT" envDefault:"10s"`
	MetricsAddr       string        `env:"CAMPAIGNSEARCH_METRICS_ADDR"`

	// Tracing
	TracingEnabled   bool    `env:"CAMPAIGNSEARCH_TRACING" envDefault:"false"`
	TraceSampleRatio float64 `env:"CAMPAIGNSEARCH_TRACE_SAMPLE_RATIO" envDefault:"1"`
	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure     bool    `env:"OTEL_EXPORTER_OTLP_INSECURE"`

	// Indexing
	IndexWorkers int `env:"CAMPAIGNSEARCH_INDEX_WORKERS" envDefault:"4"`
}

// Validation errors
var (
	ErrInvalidSampleRate = errors.New("metrics sample rate must be between 0 and 1")
	ErrInvalidTraceRatio = errors.New("trace sample ratio must be between 0 and 1")
	ErrInvalidRRF        = errors.New("RRF constant must be positive")
	ErrInvalidOverFetch  = errors.New("over-fetch settings must be positive and ordered")
)

// Load parses the environment into a Config and validates it
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks numeric ranges
func (c Config) Validate() error {
	if c.MetricsSampleRate < 0 || c.MetricsSampleRate > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidSampleRate, c.MetricsSampleRate)
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidTraceRatio, c.TraceSampleRatio)
	}
	if c.RRFConstant <= 0 {
		return ErrInvalidRRF
	}
	if c.OverFetchFactor <= 0 || c.MinOverFetch <= 0 || c.MaxCandidates < c.MinOverFetch {
		return ErrInvalidOverFetch
	}
	return nil
}

// ResolveDBPath expands a leading ~ and creates the parent directory.
// ":memory:" is returned unchanged.
func (c Config) ResolveDBPath() (string, error) {
	path := c.DBPath
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create database directory: %w", err)
	}
	return path, nil
}
