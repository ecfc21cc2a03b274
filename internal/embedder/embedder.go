package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrProviderFailed    = errors.New("embedding provider failed")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")
)

// InputType distinguishes stored documents from search queries. Providers
// with asymmetric retrieval models embed the two differently.
type InputType string

const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// Embedding represents a vector embedding with metadata
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
	Hash      string // Content hash for caching
}

// EmbeddingRequest represents a request to generate embeddings
type EmbeddingRequest struct {
	Text  string
	Input InputType // Defaults to InputDocument
}

// BatchEmbeddingRequest represents a batch request
type BatchEmbeddingRequest struct {
	Texts []string
	Input InputType
}

// BatchEmbeddingResponse represents a batch response
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder interface defines methods for generating embeddings
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts in one provider call
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	// Dimension returns the embedding dimension for this provider
	Dimension() int

	// Provider returns the provider name
	Provider() string

	// Model returns the model name
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}

// Cache provides in-memory LRU caching of embeddings by content hash
type Cache struct {
	cache *lru.Cache[string, *Embedding]
}

// NewCache creates a new embedding cache with LRU eviction
func NewCache(maxLen int) *Cache {
	if maxLen <= 0 {
		maxLen = 10000
	}
	cache, err := lru.New[string, *Embedding](maxLen)
	if err != nil {
		cache, _ = lru.New[string, *Embedding](10000)
	}
	return &Cache{cache: cache}
}

// Get returns a copy of the cached embedding so callers can't mutate the entry
func (c *Cache) Get(hash string) (*Embedding, bool) {
	emb, ok := c.cache.Get(hash)
	if !ok {
		return nil, false
	}
	return emb.clone(), true
}

// Set stores a copy of emb with automatic LRU eviction. Later changes to
// emb do not reach the cache.
func (c *Cache) Set(hash string, emb *Embedding) {
	if emb == nil {
		return
	}
	c.cache.Add(hash, emb.clone())
}

func (e *Embedding) clone() *Embedding {
	out := *e
	out.Vector = make([]float32, len(e.Vector))
	copy(out.Vector, e.Vector)
	return &out
}

// Size returns the current cache size
func (c *Cache) Size() int {
	return c.cache.Len()
}

// Clear empties the cache
func (c *Cache) Clear() {
	c.cache.Purge()
}

// ComputeHash computes the cache key for a text embedded as the given input type
func ComputeHash(text string, input InputType) string {
	h := sha256.Sum256([]byte(string(normalizeInput(input)) + "\x00" + text))
	return hex.EncodeToString(h[:])
}

func normalizeInput(input InputType) InputType {
	if input == InputQuery {
		return InputQuery
	}
	return InputDocument
}

// ValidateRequest validates an embedding request
func ValidateRequest(req EmbeddingRequest) error {
	if req.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest validates a batch embedding request
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}

	for i, text := range req.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}

	return nil
}

// cachedBatch serves a batch from cache where possible and calls fetch for
// the misses only, preserving input order in the result
func cachedBatch(ctx context.Context, cache *Cache, req BatchEmbeddingRequest, fetch func(ctx context.Context, texts []string) ([]*Embedding, error)) ([]*Embedding, error) {
	out := make([]*Embedding, len(req.Texts))
	var missing []string
	var missingIdx []int

	for i, text := range req.Texts {
		if cache != nil {
			if emb, ok := cache.Get(ComputeHash(text, req.Input)); ok {
				out[i] = emb
				continue
			}
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	fetched, err := fetch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fetched) != len(missing) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", ErrProviderFailed, len(missing), len(fetched))
	}

	for j, emb := range fetched {
		emb.Hash = ComputeHash(missing[j], req.Input)
		if cache != nil {
			cache.Set(emb.Hash, emb)
		}
		out[missingIdx[j]] = emb
	}
	return out, nil
}

// single runs a one-text request through the batch path
func single(ctx context.Context, e Embedder, req EmbeddingRequest) (*Embedding, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	resp, err := e.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{req.Text}, Input: req.Input})
	if err != nil {
		return nil, err
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}
	return resp.Embeddings[0], nil
}
