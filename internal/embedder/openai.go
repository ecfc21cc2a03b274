package embedder

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIProvider implements Embedder over any OpenAI-compatible embeddings
// endpoint using langchaingo
type OpenAIProvider struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
	cache     *Cache
	retry     RetryConfig
}

// NewOpenAIProvider creates a new OpenAI embedder. An empty baseURL uses the
// public OpenAI API.
func NewOpenAIProvider(apiKey, baseURL, model string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}

	opts := []openai.Option{
		openai.WithToken(apiKey),
		openai.WithEmbeddingModel(model),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}

	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	emb, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(MaxBatchSize),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai embedder: %w", err)
	}

	return &OpenAIProvider{
		embedder:  emb,
		model:     model,
		dimension: openAIDimension(model),
		cache:     cache,
		retry:     DefaultRetryConfig(),
	}, nil
}

func openAIDimension(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return OpenAIDimension
	}
}

func (o *OpenAIProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, o, req)
}

func (o *OpenAIProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := cachedBatch(ctx, o.cache, req, func(ctx context.Context, texts []string) ([]*Embedding, error) {
		vectors, err := retryWithBackoff(ctx, o.retry, func() ([][]float32, error) {
			return o.embedder.EmbedDocuments(ctx, texts)
		})
		if err != nil {
			return nil, fmt.Errorf("%w after %d attempts: %v", ErrProviderFailed, o.retry.MaxRetries, err)
		}

		out := make([]*Embedding, len(vectors))
		for i, v := range vectors {
			out[i] = &Embedding{
				Vector:    v,
				Dimension: len(v),
				Provider:  ProviderOpenAI,
				Model:     o.model,
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderOpenAI,
		Model:      o.model,
	}, nil
}

func (o *OpenAIProvider) Dimension() int {
	return o.dimension
}

func (o *OpenAIProvider) Provider() string {
	return ProviderOpenAI
}

func (o *OpenAIProvider) Model() string {
	return o.model
}

func (o *OpenAIProvider) Close() error {
	return nil
}
