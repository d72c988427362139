// Package embedder maps text to fixed-length, L2-normalized vectors.
//
// Three providers are available: Jina AI and OpenAI over HTTP, and an
// offline hashing embedder that needs no network access.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{CacheSize: 10000})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	resp, err := emb.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{
//	    Texts: []string{chunk1.Text, chunk2.Text},
//	})
//	// resp.Embeddings[i] belongs to Texts[i]
//
// # Provider Selection
//
// With an empty Config.Provider the provider is chosen from the environment:
//
//  1. If SEMINDEX_EMBEDDING_PROVIDER is set, use it
//  2. Else if JINA_API_KEY is set, use Jina AI
//  3. Else if OPENAI_API_KEY is set, use OpenAI
//  4. Else use the local provider
//
// Remote providers send at most MaxBatchSize texts per request and
// reassemble larger batches in input order.
//
// # Caching
//
// Embeddings are cached in an LRU keyed by the SHA-256 of the input, so
// unchanged chunks are not re-embedded when a file is indexed again.
//
// # Errors
//
// Remote failures wrap ErrProviderFailed. Calls are attempted once unless
// Config.MaxAttempts asks for more.
package embedder
