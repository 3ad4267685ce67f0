// Package embedder turns paragraph text into vector embeddings.
//
// Three providers implement the Embedder interface: OpenAI (through the
// official SDK), Jina AI (plain HTTP against an OpenAI-compatible endpoint)
// and a local hashed bag-of-words model that needs no network.
//
// # Basic Usage
//
//	emb, err := embedder.New(embedder.Config{
//	    Provider:  "openai",
//	    APIKey:    os.Getenv("OPENAI_API_KEY"),
//	    Model:     "text-embedding-3-small",
//	    CacheSize: 1000,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer emb.Close()
//
//	result, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "The quick brown fox.",
//	})
//
// # Provider Selection
//
// DetectProvider picks the provider New will build:
//
//  1. Config.Provider when set (case-insensitive)
//  2. OpenAI when Config.OpenAIKey is set
//  3. Jina when Config.JinaKey is set
//  4. the local provider otherwise
//
// # Rate-Limited Document Embedding
//
// BatchEmbedder embeds a whole document one paragraph per request.
// Requests are grouped into batches of CallsPerPeriod; after each batch it
// sleeps Period, and every request also passes a sliding-window limiter:
//
//	batch := embedder.NewBatchEmbedder(emb, embedder.BatchConfig{
//	    CallsPerPeriod: 60,
//	    Period:         time.Minute,
//	})
//	vectors, stats, err := batch.Embed(ctx, paragraphs)
//
// A failing request aborts the run and wraps ErrProviderFailed. Requests
// are never retried.
//
// # Caching
//
// Providers share an LRU cache keyed by model and text hash, so re-indexing
// unchanged paragraphs does not hit the network.
package embedder
