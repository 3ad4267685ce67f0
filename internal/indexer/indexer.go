package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/docindex-mcp/internal/chunker"
	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/extractor"
	"github.com/dshills/docindex-mcp/internal/ratelimit"
	"github.com/dshills/docindex-mcp/internal/resolver"
	"github.com/dshills/docindex-mcp/internal/searcher"
	"github.com/dshills/docindex-mcp/internal/storage"
	"github.com/dshills/docindex-mcp/pkg/types"
)

// Indexer coordinates the pipeline: extract -> segment -> embed -> index -> cache,
// and answers searches from the cache
type Indexer struct {
	storage   storage.Storage
	extractor extractor.Extractor
	chunker   *chunker.Chunker
	batch     *embedder.BatchEmbedder
	throttle  *ratelimit.Throttle
	options   searcher.Options
	logger    *log.Logger
	locks     *lockSet

	// Worker pool configuration
	workers int
}

// Config contains configuration for the indexer
type Config struct {
	Threshold      float64 // Match threshold for new indexes (default: searcher.DefaultThreshold)
	QueryCacheSize int     // Cached query vectors per index (default: searcher.DefaultQueryCacheSize)

	// LocalRateLimit makes search sleep LocalRatePeriod before every
	// LocalRateLimit-th paragraph comparison, starting with the first. 0 disables.
	LocalRateLimit  int
	LocalRatePeriod time.Duration

	Workers int               // Documents built concurrently by BuildDocumentIndexes (default: runtime.NumCPU())
	Sleep   ratelimit.Sleeper // Pause used by the search throttle (default: ratelimit.Sleep)
	Logger  *log.Logger       // Default: discard
}

// BuildOptions controls a single build
type BuildOptions struct {
	// Force re-embeds the document even when a valid cache entry exists
	Force bool
}

// BuildStats contains statistics about a build
type BuildStats struct {
	RunID        string
	DocumentPath string
	CachePath    string
	Pages        int
	Paragraphs   int
	CacheHit     bool
	Embedding    embedder.BatchStats
	Duration     time.Duration
}

// SearchResult is the outcome of a search
type SearchResult struct {
	RunID string
	// MatchingText holds every matching paragraph in document order, each followed by "\n\n"
	MatchingText string
	// Matches are the matching paragraph ordinals, ascending
	Matches    []int
	Paragraphs int
	// Stale is set when the document changed since it was indexed
	Stale    bool
	Duration time.Duration
}

// New creates a new Indexer instance
func New(store storage.Storage, ext extractor.Extractor, batch *embedder.BatchEmbedder, cfg Config) *Indexer {
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	return &Indexer{
		storage:   store,
		extractor: ext,
		chunker:   chunker.New(),
		batch:     batch,
		throttle:  ratelimit.NewThrottle(cfg.LocalRateLimit, cfg.LocalRatePeriod, cfg.Sleep),
		options: searcher.Options{
			Threshold:      cfg.Threshold,
			QueryEmbedder:  batch.Embedder(),
			QueryCacheSize: cfg.QueryCacheSize,
		},
		logger:  logger,
		locks:   newLockSet(),
		workers: workers,
	}
}

// Embedder returns the provider used for paragraphs and queries
func (idx *Indexer) Embedder() embedder.Embedder {
	return idx.batch.Embedder()
}

// Indexing reports whether a build currently holds the lock for path
func (idx *Indexer) Indexing(path string) bool {
	return idx.locks.get(documentKey(path)).Held()
}

// BuildDocumentIndex returns the index for the document at path, embedding it only
// when no cache entry matches the current content. Nothing is written unless the
// whole pipeline succeeds.
func (idx *Indexer) BuildDocumentIndex(ctx context.Context, path string, opts BuildOptions) (*searcher.Index, *BuildStats, error) {
	key := documentKey(path)
	lock := idx.locks.get(key)
	if !lock.TryAcquire() {
		return nil, nil, fmt.Errorf("%w: %s", types.ErrIndexingInProgress, path)
	}
	defer lock.Release()

	start := time.Now()
	stats := &BuildStats{
		RunID:        uuid.NewString(),
		DocumentPath: key,
		CachePath:    storage.CachePath(key),
	}

	pages, err := idx.extractor.Extract(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	stats.Pages = len(pages)
	doc := types.Document{Path: key, Pages: pages}
	hash := doc.ContentHash()

	if !opts.Force {
		index, ok, err := idx.loadCurrent(ctx, key, hash, stats.RunID)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			stats.CacheHit = true
			stats.Paragraphs = index.Len()
			stats.Duration = time.Since(start)
			idx.logger.Printf("build %s run=%s: cache hit, %d paragraphs", key, stats.RunID, stats.Paragraphs)
			return index, stats, nil
		}
	}

	paragraphs := idx.chunker.SegmentPages(pages)
	stats.Paragraphs = len(paragraphs)
	idx.logger.Printf("build %s run=%s: embedding %d paragraphs from %d pages", key, stats.RunID, len(paragraphs), len(pages))

	vectors, embedStats, err := idx.batch.Embed(ctx, chunker.Contents(paragraphs))
	if embedStats != nil {
		stats.Embedding = *embedStats
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to embed %s: %w", path, err)
	}

	index, err := searcher.Build(vectors, idx.options)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build index for %s: %w", path, err)
	}

	now := time.Now()
	entry := &storage.CacheEntry{
		DocumentPath: key,
		ContentHash:  hash,
		Embeddings:   vectors,
		Index:        index.Spec(),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := idx.storage.Save(ctx, key, entry); err != nil {
		return nil, nil, fmt.Errorf("failed to cache %s: %w", path, err)
	}

	stats.Duration = time.Since(start)
	idx.logger.Printf("build %s run=%s: %d paragraphs in %d batches (%d sleeps), %v",
		key, stats.RunID, stats.Paragraphs, stats.Embedding.Batches, stats.Embedding.Sleeps, stats.Duration)
	return index, stats, nil
}

// loadCurrent returns the cached index when it matches hash and the current model
func (idx *Indexer) loadCurrent(ctx context.Context, key string, hash [32]byte, runID string) (*searcher.Index, bool, error) {
	entry, err := idx.storage.Load(ctx, key)
	if errors.Is(err, types.ErrCacheMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load cache for %s: %w", key, err)
	}

	if entry.ContentHash != hash {
		idx.logger.Printf("build %s run=%s: content changed, rebuilding", key, runID)
		return nil, false, nil
	}
	if model := idx.Embedder().Model(); entry.Index.Model != "" && entry.Index.Model != model {
		idx.logger.Printf("build %s run=%s: cached with %s, now %s, rebuilding", key, runID, entry.Index.Model, model)
		return nil, false, nil
	}

	index, err := searcher.FromSpec(entry.Index, entry.Embeddings, idx.options)
	if err != nil {
		idx.logger.Printf("build %s run=%s: cached index unusable (%v), rebuilding", key, runID, err)
		return nil, false, nil
	}
	return index, true, nil
}

// BuildDocumentIndexes builds several documents concurrently.
// The first failure cancels the remaining builds.
func (idx *Indexer) BuildDocumentIndexes(ctx context.Context, paths []string, opts BuildOptions) ([]*BuildStats, error) {
	results := make([]*BuildStats, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, path := range paths {
		g.Go(func() error {
			_, stats, err := idx.BuildDocumentIndex(gctx, path, opts)
			if err != nil {
				return err
			}
			results[i] = stats
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// SearchDocumentIndex returns the text of every paragraph of the document at path
// that matches query. The document must have been built first.
func (idx *Indexer) SearchDocumentIndex(ctx context.Context, path, query string) (*SearchResult, error) {
	if err := embedder.ValidateRequest(embedder.EmbeddingRequest{Text: query}); err != nil {
		return nil, fmt.Errorf("invalid query: %w", err)
	}

	start := time.Now()
	key := documentKey(path)
	result := &SearchResult{RunID: uuid.NewString()}

	entry, err := idx.storage.Load(ctx, key)
	if errors.Is(err, types.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotIndexed, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cache for %s: %w", path, err)
	}

	pages, err := idx.extractor.Extract(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to extract %s: %w", path, err)
	}
	doc := types.Document{Path: key, Pages: pages}
	if doc.ContentHash() != entry.ContentHash {
		result.Stale = true
		idx.logger.Printf("search %s run=%s: document changed since it was indexed", key, result.RunID)
	}

	index, err := searcher.FromSpec(entry.Index, entry.Embeddings, idx.options)
	if err != nil {
		return nil, fmt.Errorf("failed to load index for %s: %w", path, err)
	}
	result.Paragraphs = index.Len()

	matches := make([]int, 0)
	for i, vector := range index.Embeddings() {
		if err := idx.throttle.Tick(ctx, i); err != nil {
			return nil, err
		}
		ok, err := index.Search(ctx, vector, query)
		if err != nil {
			return nil, fmt.Errorf("failed to score paragraph %d: %w", i, err)
		}
		if ok {
			matches = append(matches, i)
		}
	}
	result.Matches = matches

	text, err := resolver.Join(matches, pages)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve matches in %s: %w", path, err)
	}
	result.MatchingText = text
	result.Duration = time.Since(start)

	idx.logger.Printf("search %s run=%s: %d of %d paragraphs matched in %v",
		key, result.RunID, len(matches), result.Paragraphs, result.Duration)
	return result, nil
}

// Status reports the cache entry of the document at path
func (idx *Indexer) Status(ctx context.Context, path string) (*storage.EntryStatus, error) {
	status, err := idx.storage.Status(ctx, documentKey(path))
	if errors.Is(err, types.ErrCacheMiss) {
		return nil, fmt.Errorf("%w: %s", types.ErrNotIndexed, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read status for %s: %w", path, err)
	}
	return status, nil
}

// Forget removes the cache entry of the document at path
func (idx *Indexer) Forget(ctx context.Context, path string) error {
	key := documentKey(path)
	lock := idx.locks.get(key)
	if !lock.TryAcquire() {
		return fmt.Errorf("%w: %s", types.ErrIndexingInProgress, path)
	}
	defer lock.Release()

	if err := idx.storage.Delete(ctx, key); err != nil {
		return fmt.Errorf("failed to delete cache for %s: %w", path, err)
	}
	return nil
}

// documentKey matches the key storage uses so locks and cache entries agree
func documentKey(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}
