package embedder

import (
	"fmt"
	"strings"

	"github.com/dshills/campaignsearch/internal/config"
)

// Config holds embedder configuration
type Config struct {
	Provider      string // jina, openai or local; empty auto-detects
	Model         string // Empty uses the provider default
	JinaAPIKey    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	CacheSize     int // Zero disables caching
}

// ConfigFrom extracts the embedder settings from process configuration
func ConfigFrom(cfg config.Config) Config {
	return Config{
		Provider:      cfg.EmbeddingProvider,
		Model:         cfg.EmbeddingModel,
		JinaAPIKey:    cfg.JinaAPIKey,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		CacheSize:     cfg.EmbeddingCacheSize,
	}
}

// New creates an embedder for the configured provider
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	switch DetectProvider(cfg) {
	case ProviderJina:
		return NewJinaProvider(cfg.JinaAPIKey, cfg.Model, cache)
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, cache)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// NewFromConfig creates an embedder from process configuration
func NewFromConfig(cfg config.Config) (Embedder, error) {
	return New(ConfigFrom(cfg))
}

// DetectProvider returns the provider New would use.
// Priority:
// 1. Explicit provider name
// 2. Available API key: Jina, then OpenAI
// 3. Local provider
func DetectProvider(cfg Config) string {
	if cfg.Provider != "" {
		return strings.ToLower(cfg.Provider)
	}
	if cfg.JinaAPIKey != "" {
		return ProviderJina
	}
	if cfg.OpenAIAPIKey != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
