package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/campaignsearch/internal/config"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"explicit provider wins", Config{Provider: "Local", JinaAPIKey: "j"}, ProviderLocal},
		{"jina key", Config{JinaAPIKey: "j", OpenAIAPIKey: "o"}, ProviderJina},
		{"openai key", Config{OpenAIAPIKey: "o"}, ProviderOpenAI},
		{"nothing configured", Config{}, ProviderLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectProvider(tt.cfg))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("local", func(t *testing.T) {
		emb, err := New(Config{Provider: ProviderLocal, CacheSize: 10})
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("jina with model override", func(t *testing.T) {
		emb, err := New(Config{Provider: ProviderJina, JinaAPIKey: "key", Model: "jina-embeddings-v3-small"})
		require.NoError(t, err)
		assert.Equal(t, "jina-embeddings-v3-small", emb.Model())
	})

	t.Run("openai", func(t *testing.T) {
		emb, err := New(Config{OpenAIAPIKey: "key"})
		require.NoError(t, err)
		assert.Equal(t, ProviderOpenAI, emb.Provider())
	})

	t.Run("explicit provider without key", func(t *testing.T) {
		_, err := New(Config{Provider: ProviderJina})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		_, err := New(Config{Provider: "cohere"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Config{
		EmbeddingProvider:  "local",
		EmbeddingCacheSize: 5,
		JinaAPIKey:         "ignored",
	}
	assert.Equal(t, Config{Provider: "local", CacheSize: 5, JinaAPIKey: "ignored"}, ConfigFrom(cfg))

	emb, err := NewFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())
}
