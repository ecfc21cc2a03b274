package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dshills/campaignsearch/internal/logger"
)

// QueryEmbedder embeds search queries within the model's token budget
type QueryEmbedder struct {
	embedder  Embedder
	tokenizer Tokenizer
	window    int
	logger    *logger.Logger
}

// QueryOption configures a QueryEmbedder
type QueryOption func(*QueryEmbedder)

// WithContextWindow overrides the token budget derived from the model name
func WithContextWindow(tokens int) QueryOption {
	return func(q *QueryEmbedder) {
		if tokens > 0 {
			q.window = tokens
		}
	}
}

// WithLogger sets the logger used for truncation warnings
func WithLogger(l *logger.Logger) QueryOption {
	return func(q *QueryEmbedder) {
		if l != nil {
			q.logger = l
		}
	}
}

// NewQueryEmbedder wraps an embedder with token budgeting
func NewQueryEmbedder(e Embedder, tok Tokenizer, opts ...QueryOption) *QueryEmbedder {
	q := &QueryEmbedder{
		embedder:  e,
		tokenizer: tok,
		window:    ContextWindow(e.Model()),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// EmbedQuery returns the query vector for text. Blank text yields an empty
// vector without calling the provider. Text longer than the context window
// is cut to its first window tokens before embedding.
func (q *QueryEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return []float32{}, nil
	}

	if n := q.tokenizer.Count(text); n > q.window {
		q.logger.Warn("query truncated",
			"tokens", n,
			"limit", q.window,
			"model", q.embedder.Model(),
		)
		text = q.tokenizer.Truncate(text, q.window)
	}

	emb, err := q.embedder.GenerateEmbedding(ctx, EmbeddingRequest{Text: text, Input: InputQuery})
	if err != nil {
		if errors.Is(err, ErrProviderFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}
	return emb.Vector, nil
}

// Model returns the model of the wrapped embedder
func (q *QueryEmbedder) Model() string {
	return q.embedder.Model()
}
