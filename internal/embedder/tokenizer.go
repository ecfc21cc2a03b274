package embedder

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer counts and truncates text in model tokens
type Tokenizer interface {
	// Count returns the number of tokens in text
	Count(text string) int
	// Truncate returns text cut to its first limit tokens
	Truncate(text string, limit int) string
}

// Known embedding context windows, in tokens
const (
	DefaultContextWindow = 8191
	jinaContextWindow    = 8192
	localContextWindow   = 512
)

// ContextWindow returns the maximum number of input tokens for a model
func ContextWindow(model string) int {
	switch {
	case strings.HasPrefix(model, "text-embedding-3-"), model == "text-embedding-ada-002":
		return DefaultContextWindow
	case strings.HasPrefix(model, "jina-embeddings-v3"):
		return jinaContextWindow
	case model == DefaultLocalModel:
		return localContextWindow
	default:
		return DefaultContextWindow
	}
}

type tiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer returns a BPE tokenizer for model, falling back to
// cl100k_base for models tiktoken doesn't know. Encodings are fetched on
// first use unless an offline loader is installed.
func NewTokenizer(model string) (Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load tokenizer for %s: %w", model, err)
		}
	}
	return &tiktokenTokenizer{enc: enc}, nil
}

func (t *tiktokenTokenizer) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

func (t *tiktokenTokenizer) Truncate(text string, limit int) string {
	tokens := t.enc.Encode(text, nil, nil)
	if len(tokens) <= limit {
		return text
	}
	if limit < 0 {
		limit = 0
	}
	return t.enc.Decode(tokens[:limit])
}

// WordTokenizer approximates tokens with whitespace-separated words. It is
// used when no BPE encoding can be loaded and keeps no state.
type WordTokenizer struct{}

// NewWordTokenizer creates a word tokenizer
func NewWordTokenizer() *WordTokenizer {
	return &WordTokenizer{}
}

func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// Truncate keeps the first limit words, joined by single spaces
func (WordTokenizer) Truncate(text string, limit int) string {
	fields := strings.Fields(text)
	if len(fields) <= limit {
		return text
	}
	if limit < 0 {
		limit = 0
	}
	return strings.Join(fields[:limit], " ")
}
