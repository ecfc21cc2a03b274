// Package embedder generates vector embeddings for campaign assets and
// search queries.
//
// Three providers are available: Jina AI over HTTP, any OpenAI-compatible
// endpoint through langchaingo, and a local feature-hashing provider that
// works offline. Remote providers retry with exponential backoff and all
// providers share an LRU cache keyed by text and input type.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{Provider: "local", CacheSize: 10000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{asset.SearchText()},
//	    Input: embedder.InputDocument,
//	})
//
// # Provider Selection
//
// DetectProvider picks, in order: the configured provider name, Jina when
// JINA_API_KEY is set, OpenAI when OPENAI_API_KEY is set, else local.
//
// # Query Embedding
//
// QueryEmbedder applies the model's context window before embedding a
// query. Over-long queries keep their first tokens and a "query truncated"
// warning is logged:
//
//	tok, err := embedder.NewTokenizer(emb.Model())
//	if err != nil {
//	    tok = embedder.NewWordTokenizer()
//	}
//	qe := embedder.NewQueryEmbedder(emb, tok, embedder.WithLogger(log))
//	vector, err := qe.EmbedQuery(ctx, "who runs the smuggling ring?")
//
// Blank queries return an empty vector and never reach the provider.
//
// # Error Handling
//
//	if errors.Is(err, embedder.ErrProviderFailed) {
//	    // provider unavailable after retries
//	}
package embedder
