package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/storage"
)

const (
	// DefaultThreshold is the cosine similarity at which a paragraph matches
	DefaultThreshold = 0.75

	// DefaultQueryCacheSize bounds the number of cached query vectors per index
	DefaultQueryCacheSize = 256
)

var (
	// ErrNoQueryEmbedder is returned when Search is called on an index without a query embedder
	ErrNoQueryEmbedder = errors.New("index has no query embedder")
	// ErrDimensionMismatch is returned when vectors of different length are compared
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrInvalidThreshold is returned for thresholds outside [-1, 1]
	ErrInvalidThreshold = errors.New("threshold must be within [-1, 1]")
)

// Options configures an Index
type Options struct {
	// Threshold overrides DefaultThreshold when non-zero. Zero always means the default,
	// so Build never produces an index whose persisted threshold is 0.
	Threshold float64
	// QueryEmbedder turns query text into a vector; required by Search
	QueryEmbedder embedder.Embedder
	// QueryCacheSize overrides DefaultQueryCacheSize when positive
	QueryCacheSize int
}

// Index answers per-paragraph match queries over a document's embeddings
type Index struct {
	embeddings [][]float32
	spec       storage.IndexSpec
	queries    embedder.Embedder
	cache      *lru.Cache[[32]byte, []float32]
}

// Build creates an index over the ordered paragraph embeddings
func Build(embeddings [][]float32, opts Options) (*Index, error) {
	threshold := opts.Threshold
	if threshold == 0 {
		threshold = DefaultThreshold
	}

	spec := storage.IndexSpec{Threshold: threshold}
	if opts.QueryEmbedder != nil {
		spec.Provider = opts.QueryEmbedder.Provider()
		spec.Model = opts.QueryEmbedder.Model()
	}
	if len(embeddings) > 0 {
		spec.Dimension = len(embeddings[0])
	}

	return newIndex(embeddings, spec, opts)
}

// FromSpec rebuilds a persisted index. The spec threshold wins over opts.Threshold.
func FromSpec(spec storage.IndexSpec, embeddings [][]float32, opts Options) (*Index, error) {
	if spec.Threshold == 0 {
		spec.Threshold = DefaultThreshold
	}
	return newIndex(embeddings, spec, opts)
}

func newIndex(embeddings [][]float32, spec storage.IndexSpec, opts Options) (*Index, error) {
	if spec.Threshold < -1 || spec.Threshold > 1 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidThreshold, spec.Threshold)
	}
	for i, vector := range embeddings {
		if spec.Dimension == 0 {
			spec.Dimension = len(vector)
		}
		if len(vector) != spec.Dimension {
			return nil, fmt.Errorf("%w: embedding %d has %d dimensions, index has %d",
				ErrDimensionMismatch, i, len(vector), spec.Dimension)
		}
	}

	size := opts.QueryCacheSize
	if size <= 0 {
		size = DefaultQueryCacheSize
	}
	cache, err := lru.New[[32]byte, []float32](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create query cache: %w", err)
	}

	return &Index{
		embeddings: embeddings,
		spec:       spec,
		queries:    opts.QueryEmbedder,
		cache:      cache,
	}, nil
}

// Len returns the number of indexed paragraphs
func (ix *Index) Len() int {
	return len(ix.embeddings)
}

// Embeddings returns the indexed vectors in ordinal order
func (ix *Index) Embeddings() [][]float32 {
	return ix.embeddings
}

// Embedding returns the vector of paragraph ordinal
func (ix *Index) Embedding(ordinal int) ([]float32, bool) {
	if ordinal < 0 || ordinal >= len(ix.embeddings) {
		return nil, false
	}
	return ix.embeddings[ordinal], true
}

// Spec returns the persisted form of the index
func (ix *Index) Spec() storage.IndexSpec {
	return ix.spec
}

// Threshold returns the match threshold
func (ix *Index) Threshold() float64 {
	return ix.spec.Threshold
}

// QueryVector embeds query, serving repeated queries from the LRU cache
func (ix *Index) QueryVector(ctx context.Context, query string) ([]float32, error) {
	if ix.queries == nil {
		return nil, ErrNoQueryEmbedder
	}
	req := embedder.EmbeddingRequest{Text: query}
	if err := embedder.ValidateRequest(req); err != nil {
		return nil, err
	}

	key := sha256.Sum256([]byte(ix.queries.Model() + "\x00" + query))
	if vector, ok := ix.cache.Get(key); ok {
		return vector, nil
	}

	emb, err := ix.queries.GenerateEmbedding(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	ix.cache.Add(key, emb.Vector)
	return emb.Vector, nil
}

// Score returns the cosine similarity between a paragraph embedding and the query
func (ix *Index) Score(ctx context.Context, embedding []float32, query string) (float64, error) {
	vector, err := ix.QueryVector(ctx, query)
	if err != nil {
		return 0, err
	}
	if len(vector) != len(embedding) {
		return 0, fmt.Errorf("%w: query has %d dimensions, paragraph has %d",
			ErrDimensionMismatch, len(vector), len(embedding))
	}
	return storage.CosineSimilarity(embedding, vector), nil
}

// Search reports whether the paragraph with this embedding matches query
func (ix *Index) Search(ctx context.Context, embedding []float32, query string) (bool, error) {
	score, err := ix.Score(ctx, embedding, query)
	if err != nil {
		return false, err
	}
	return score >= ix.spec.Threshold, nil
}

// CachedQueries returns the number of query vectors held in the cache
func (ix *Index) CachedQueries() int {
	return ix.cache.Len()
}
