package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
	"unicode"
)

// Provider configuration
const (
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	// Default models
	DefaultJinaModel   = "jina-embeddings-v3"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultLocalModel  = "local-hash"

	// Dimensions
	JinaDimension   = 1024
	OpenAIDimension = 1536
	LocalDimension  = 384

	// Batch limits
	DefaultBatchSize = 50
	MaxBatchSize     = 100

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	DefaultJinaURL = "https://api.jina.ai/v1/embeddings"
)

// JinaProvider implements Embedder using Jina AI API
type JinaProvider struct {
	apiKey     string
	model      string
	url        string
	httpClient *http.Client
	cache      *Cache
	retry      RetryConfig
}

// NewJinaProvider creates a new Jina AI embedder
func NewJinaProvider(apiKey, model string, cache *Cache) (*JinaProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: JINA_API_KEY not set", ErrNoProviderEnabled)
	}
	if model == "" {
		model = DefaultJinaModel
	}

	return &JinaProvider{
		apiKey: apiKey,
		model:  model,
		url:    DefaultJinaURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
		retry: DefaultRetryConfig(),
	}, nil
}

func (j *JinaProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, j, req)
}

func (j *JinaProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := cachedBatch(ctx, j.cache, req, func(ctx context.Context, texts []string) ([]*Embedding, error) {
		embs, err := retryWithBackoff(ctx, j.retry, func() ([]*Embedding, error) {
			return j.callAPI(ctx, texts, req.Input)
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
		}
		return embs, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderJina,
		Model:      j.model,
	}, nil
}

// jinaTask maps an input type onto the retrieval adapters of jina-embeddings-v3
func jinaTask(input InputType) string {
	if input == InputQuery {
		return "retrieval.query"
	}
	return "retrieval.passage"
}

func (j *JinaProvider) callAPI(ctx context.Context, texts []string, input InputType) ([]*Embedding, error) {
	reqBody := map[string]interface{}{
		"input": texts,
		"model": j.model,
		"task":  jinaTask(input),
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, j.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+j.apiKey)

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		err := fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
		// 4xx other than rate limiting will fail the same way again
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(err)
		}
		return nil, err
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(apiResp.Data))
	}

	// Results carry their input index; don't rely on response order
	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range", data.Index)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    data.Embedding,
			Dimension: len(data.Embedding),
			Provider:  ProviderJina,
			Model:     j.model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
	}

	return embeddings, nil
}

func (j *JinaProvider) Dimension() int {
	return JinaDimension
}

func (j *JinaProvider) Provider() string {
	return ProviderJina
}

func (j *JinaProvider) Model() string {
	return j.model
}

func (j *JinaProvider) Close() error {
	j.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider produces deterministic feature-hashed vectors. Texts that
// share words get similar vectors, which is enough for offline use and
// tests; it is not a semantic model.
type LocalProvider struct {
	model string
	cache *Cache
}

// NewLocalProvider creates a new local embedder
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{
		model: DefaultLocalModel,
		cache: cache,
	}, nil
}

func (l *LocalProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	return single(ctx, l, req)
}

func (l *LocalProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := ValidateBatchRequest(req); err != nil {
		return nil, err
	}

	embeddings, err := cachedBatch(ctx, l.cache, req, func(ctx context.Context, texts []string) ([]*Embedding, error) {
		out := make([]*Embedding, len(texts))
		for i, text := range texts {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			out[i] = &Embedding{
				Vector:    hashVector(text, LocalDimension),
				Dimension: LocalDimension,
				Provider:  ProviderLocal,
				Model:     l.model,
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderLocal,
		Model:      l.model,
	}, nil
}

// hashVector buckets lowercased words into dim signed slots and normalizes
// the result to unit length
func hashVector(text string, dim int) []float32 {
	vector := make([]float32, dim)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New64a()
		_, _ = h.Write([]byte(word))
		sum := h.Sum64()
		slot := int(sum % uint64(dim))
		if sum&(1<<63) != 0 {
			vector[slot]--
		} else {
			vector[slot]++
		}
	}
	return NormalizeVector(vector)
}

func (l *LocalProvider) Dimension() int {
	return LocalDimension
}

func (l *LocalProvider) Provider() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return l.model
}

func (l *LocalProvider) Close() error {
	return nil
}

// NormalizeVector normalizes a vector to unit length (for cosine similarity)
func NormalizeVector(v []float32) []float32 {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}

	if sum == 0 {
		return v
	}

	norm := float32(math.Sqrt(sum))
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}

	return result
}
