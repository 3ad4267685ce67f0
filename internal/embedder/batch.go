package embedder

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/docindex-mcp/internal/ratelimit"
)

// BatchConfig controls the request cadence of a BatchEmbedder
type BatchConfig struct {
	// CallsPerPeriod is the batch size and the limiter budget. 0 disables throttling.
	CallsPerPeriod int
	// Period is slept after every batch and is the limiter window
	Period time.Duration
}

// BatchStats reports what one Embed run did
type BatchStats struct {
	Requests int
	Batches  int
	Sleeps   int
}

// BatchEmbedder submits every paragraph as its own request, grouping requests
// into batches of CallsPerPeriod and pausing Period after each batch.
// Every request also goes through the limiter, so at most CallsPerPeriod
// requests start within any Period regardless of batch timing.
type BatchEmbedder struct {
	embedder Embedder
	limiter  *ratelimit.Limiter
	config   BatchConfig
	sleep    ratelimit.Sleeper
}

// NewBatchEmbedder wraps an embedder with batching and rate limiting
func NewBatchEmbedder(emb Embedder, cfg BatchConfig) *BatchEmbedder {
	return &BatchEmbedder{
		embedder: emb,
		limiter:  ratelimit.New(cfg.CallsPerPeriod, cfg.Period),
		config:   cfg,
		sleep:    ratelimit.Sleep,
	}
}

// WithSleeper replaces the pause between batches. Used by tests.
func (b *BatchEmbedder) WithSleeper(sleep ratelimit.Sleeper) *BatchEmbedder {
	b.sleep = sleep
	return b
}

// Embedder returns the wrapped provider
func (b *BatchEmbedder) Embedder() Embedder {
	return b.embedder
}

// Embed returns one vector per paragraph in paragraph order.
// The first failing request aborts the run; no partial result is returned.
func (b *BatchEmbedder) Embed(ctx context.Context, paragraphs []string) ([][]float32, *BatchStats, error) {
	stats := &BatchStats{}
	vectors := make([][]float32, 0, len(paragraphs))

	if len(paragraphs) == 0 {
		return vectors, stats, nil
	}

	// Without a budget the whole document is one batch and nothing sleeps
	if b.config.CallsPerPeriod <= 0 {
		batch, err := b.embedBatch(ctx, paragraphs, 0, stats)
		if err != nil {
			return nil, stats, err
		}
		stats.Batches = 1
		return append(vectors, batch...), stats, nil
	}

	size := b.config.CallsPerPeriod
	for start := 0; start < len(paragraphs); start += size {
		end := start + size
		if end > len(paragraphs) {
			end = len(paragraphs)
		}

		batch, err := b.embedBatch(ctx, paragraphs[start:end], start, stats)
		if err != nil {
			return nil, stats, err
		}
		vectors = append(vectors, batch...)
		stats.Batches++

		if err := b.sleep(ctx, b.config.Period); err != nil {
			return nil, stats, err
		}
		stats.Sleeps++
	}

	return vectors, stats, nil
}

func (b *BatchEmbedder) embedBatch(ctx context.Context, paragraphs []string, offset int, stats *BatchStats) ([][]float32, error) {
	vectors := make([][]float32, len(paragraphs))
	for i, text := range paragraphs {
		var emb *Embedding
		err := b.limiter.Do(ctx, func() error {
			var err error
			emb, err = b.embedder.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
			return err
		})
		stats.Requests++
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			return nil, fmt.Errorf("%w: paragraph %d: %v", ErrProviderFailed, offset+i, err)
		}
		if emb == nil || len(emb.Vector) == 0 {
			return nil, fmt.Errorf("%w: paragraph %d: empty embedding", ErrProviderFailed, offset+i)
		}
		vectors[i] = emb.Vector
	}
	return vectors, nil
}

// Close stops pending limiter timers and closes the wrapped provider
func (b *BatchEmbedder) Close() error {
	b.limiter.Stop()
	return b.embedder.Close()
}
