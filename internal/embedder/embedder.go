package embedder

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/docindex-mcp/pkg/types"
)

// Common errors
var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedModel  = errors.New("unsupported model")
	ErrEmptyText         = types.ErrEmptyContent
	ErrBatchTooLarge     = errors.New("batch size exceeds limit")
	ErrNoProviderEnabled = errors.New("no embedding provider configured")

	// ErrProviderFailed is the embedding service failure every provider wraps
	ErrProviderFailed = types.ErrEmbeddingService
)

// DefaultCacheSize is used when NewCache is given a non-positive size
const DefaultCacheSize = 10000

// blankPlaceholder is sent in place of empty paragraphs; remote APIs reject empty input
const blankPlaceholder = " "

// Embedding is the vector for one paragraph or query
type Embedding struct {
	Vector      []float32
	Dimension   int
	Provider    string
	Model       string
	ContentHash [32]byte // sha256 of the embedded text
}

// EmbeddingRequest asks for the vector of a single text
type EmbeddingRequest struct {
	Text  string
	Model string // Optional: override default model
}

// BatchEmbeddingRequest asks for vectors of several texts in one service call
type BatchEmbeddingRequest struct {
	Texts []string
	Model string // Optional: override default model
}

// BatchEmbeddingResponse holds one embedding per requested text, in request order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder turns text into vectors
type Embedder interface {
	// GenerateEmbedding generates a single embedding for the given text
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)

	// GenerateBatch generates embeddings for multiple texts in one service call
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

// cacheKey scopes a text hash to a model so two models never share vectors
type cacheKey struct {
	model string
	hash  [32]byte
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits   uint64
	Misses uint64
	Size   int
}

// Cache keeps recently generated embeddings in memory, keyed by model and text
type Cache struct {
	entries *lru.Cache[cacheKey, *Embedding]
	hits    atomic.Uint64
	misses  atomic.Uint64
}

// NewCache creates an LRU embedding cache holding at most size entries
func NewCache(size int) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes
	entries, _ := lru.New[cacheKey, *Embedding](size)
	return &Cache{entries: entries}
}

// Get returns a copy of the cached embedding of text under model.
// Callers may modify the returned vector freely.
func (c *Cache) Get(model, text string) (*Embedding, bool) {
	emb, ok := c.entries.Get(cacheKey{model: model, hash: TextHash(text)})
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return cloneEmbedding(emb), true
}

// Set stores a copy of emb for text under model, evicting the oldest entry when full
func (c *Cache) Set(model, text string, emb *Embedding) {
	c.entries.Add(cacheKey{model: model, hash: TextHash(text)}, cloneEmbedding(emb))
}

// Stats returns hit and miss counts since creation or the last Purge
func (c *Cache) Stats() CacheStats {
	return CacheStats{
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
		Size:   c.entries.Len(),
	}
}

// Purge empties the cache and resets its counters
func (c *Cache) Purge() {
	c.entries.Purge()
	c.hits.Store(0)
	c.misses.Store(0)
}

func cloneEmbedding(emb *Embedding) *Embedding {
	out := *emb
	out.Vector = append([]float32(nil), emb.Vector...)
	return &out
}

// TextHash is the content hash recorded on every embedding
func TextHash(text string) [32]byte {
	return sha256.Sum256([]byte(text))
}

// ValidateRequest rejects blank query text.
// Paragraph text goes through GenerateBatch and may be empty.
func ValidateRequest(req EmbeddingRequest) error {
	if strings.TrimSpace(req.Text) == "" {
		return ErrEmptyText
	}
	return nil
}

// ValidateBatchRequest checks the batch is non-empty and within MaxBatchSize
func ValidateBatchRequest(req BatchEmbeddingRequest) error {
	if len(req.Texts) == 0 {
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	}
	if len(req.Texts) > MaxBatchSize {
		return fmt.Errorf("%w: max %d texts allowed", ErrBatchTooLarge, MaxBatchSize)
	}
	return nil
}

// wireTexts returns the texts to send to a remote service, with empty
// paragraphs replaced so the response stays one vector per paragraph
func wireTexts(texts []string) []string {
	out := texts
	copied := false
	for i, text := range texts {
		if text != "" {
			continue
		}
		if !copied {
			out = append([]string(nil), texts...)
			copied = true
		}
		out[i] = blankPlaceholder
	}
	return out
}
