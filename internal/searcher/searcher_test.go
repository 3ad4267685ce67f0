package searcher

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex-mcp/internal/embedder"
	"github.com/dshills/docindex-mcp/internal/storage"
)

// mockEmbedder implements the Embedder interface for testing
type mockEmbedder struct {
	vectors map[string][]float32
	calls   int32
	err     error
}

func (m *mockEmbedder) GenerateEmbedding(ctx context.Context, req embedder.EmbeddingRequest) (*embedder.Embedding, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.err != nil {
		return nil, m.err
	}
	vector, ok := m.vectors[req.Text]
	if !ok {
		vector = []float32{0, 0, 1}
	}
	return &embedder.Embedding{
		Vector:      vector,
		Dimension:   len(vector),
		Model:       "mock-model",
		Provider:    "mock",
		ContentHash: embedder.TextHash(req.Text),
	}, nil
}

func (m *mockEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, errors.New("not used")
}

func (m *mockEmbedder) Dimension() int   { return 3 }
func (m *mockEmbedder) Provider() string { return "mock" }
func (m *mockEmbedder) Model() string    { return "mock-model" }
func (m *mockEmbedder) Close() error     { return nil }

func newMock() *mockEmbedder {
	return &mockEmbedder{vectors: map[string][]float32{
		"alpha": {1, 0, 0},
		"beta":  {0, 1, 0},
		"both":  {1, 1, 0},
	}}
}

var paragraphVectors = [][]float32{
	{1, 0, 0},     // alpha
	{0.9, 0.1, 0}, // mostly alpha
	{0, 1, 0},     // beta
}

func TestBuild(t *testing.T) {
	ix, err := Build(paragraphVectors, Options{QueryEmbedder: newMock()})
	require.NoError(t, err)

	assert.Equal(t, 3, ix.Len())
	assert.Equal(t, DefaultThreshold, ix.Threshold())
	assert.Equal(t, storage.IndexSpec{
		Threshold: DefaultThreshold,
		Dimension: 3,
		Provider:  "mock",
		Model:     "mock-model",
	}, ix.Spec())

	v, ok := ix.Embedding(2)
	assert.True(t, ok)
	assert.Equal(t, []float32{0, 1, 0}, v)
	_, ok = ix.Embedding(3)
	assert.False(t, ok)
	_, ok = ix.Embedding(-1)
	assert.False(t, ok)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		vectors [][]float32
		opts    Options
		wantErr error
	}{
		{
			name:    "ragged dimensions",
			vectors: [][]float32{{1, 0}, {1, 0, 0}},
			wantErr: ErrDimensionMismatch,
		},
		{
			name:    "threshold too high",
			vectors: paragraphVectors,
			opts:    Options{Threshold: 1.5},
			wantErr: ErrInvalidThreshold,
		},
		{
			name:    "threshold too low",
			vectors: paragraphVectors,
			opts:    Options{Threshold: -2},
			wantErr: ErrInvalidThreshold,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.vectors, tt.opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	ix, err := Build(paragraphVectors, Options{QueryEmbedder: newMock()})
	require.NoError(t, err)

	tests := []struct {
		query string
		want  []bool
	}{
		{"alpha", []bool{true, true, false}},
		{"beta", []bool{false, false, true}},
		{"unrelated", []bool{false, false, false}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			for i, vector := range ix.Embeddings() {
				got, err := ix.Search(ctx, vector, tt.query)
				require.NoError(t, err)
				assert.Equal(t, tt.want[i], got, "paragraph %d", i)
			}
		})
	}
}

func TestSearch_ThresholdIsInclusive(t *testing.T) {
	ctx := context.Background()
	// cos({1,1,0}, {1,0,0}) = 0.7071
	ix, err := Build([][]float32{{1, 0, 0}}, Options{QueryEmbedder: newMock(), Threshold: 0.5})
	require.NoError(t, err)

	score, err := ix.Score(ctx, []float32{1, 0, 0}, "both")
	require.NoError(t, err)
	assert.InDelta(t, 0.7071, score, 1e-4)

	ok, err := ix.Search(ctx, []float32{1, 0, 0}, "both")
	require.NoError(t, err)
	assert.True(t, ok)

	exact, err := Build([][]float32{{1, 0, 0}}, Options{QueryEmbedder: newMock(), Threshold: 1})
	require.NoError(t, err)
	ok, err = exact.Search(ctx, []float32{1, 0, 0}, "alpha")
	require.NoError(t, err)
	assert.True(t, ok, "similarity equal to the threshold matches")
}

func TestSearch_QueryCache(t *testing.T) {
	ctx := context.Background()
	mock := newMock()
	ix, err := Build(paragraphVectors, Options{QueryEmbedder: mock, QueryCacheSize: 2})
	require.NoError(t, err)

	for _, vector := range ix.Embeddings() {
		_, err := ix.Search(ctx, vector, "alpha")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&mock.calls), "query embedded once")
	assert.Equal(t, 1, ix.CachedQueries())

	_, _ = ix.Search(ctx, paragraphVectors[0], "beta")
	_, _ = ix.Search(ctx, paragraphVectors[0], "both")
	assert.Equal(t, 2, ix.CachedQueries(), "cache is bounded")

	// alpha was evicted
	_, _ = ix.Search(ctx, paragraphVectors[0], "alpha")
	assert.Equal(t, int32(4), atomic.LoadInt32(&mock.calls))
}

func TestSearch_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("no query embedder", func(t *testing.T) {
		ix, err := Build(paragraphVectors, Options{})
		require.NoError(t, err)
		_, err = ix.Search(ctx, paragraphVectors[0], "alpha")
		assert.ErrorIs(t, err, ErrNoQueryEmbedder)
	})

	t.Run("empty query", func(t *testing.T) {
		ix, err := Build(paragraphVectors, Options{QueryEmbedder: newMock()})
		require.NoError(t, err)
		_, err = ix.Search(ctx, paragraphVectors[0], "")
		assert.ErrorIs(t, err, embedder.ErrEmptyText)
	})

	t.Run("embedder failure", func(t *testing.T) {
		mock := newMock()
		mock.err = embedder.ErrProviderFailed
		ix, err := Build(paragraphVectors, Options{QueryEmbedder: mock})
		require.NoError(t, err)

		_, err = ix.Search(ctx, paragraphVectors[0], "alpha")
		assert.ErrorIs(t, err, embedder.ErrProviderFailed)
		assert.Equal(t, 0, ix.CachedQueries(), "failures are not cached")
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		ix, err := Build([][]float32{{1, 0}}, Options{QueryEmbedder: newMock()})
		require.NoError(t, err)
		_, err = ix.Search(ctx, []float32{1, 0}, "alpha")
		assert.ErrorIs(t, err, ErrDimensionMismatch)
	})
}

func TestEmptyIndex(t *testing.T) {
	ix, err := Build(nil, Options{QueryEmbedder: newMock()})
	require.NoError(t, err)

	assert.Equal(t, 0, ix.Len())
	assert.Equal(t, 0, ix.Spec().Dimension)
	assert.Empty(t, ix.Embeddings())
}

func TestFromSpec(t *testing.T) {
	ctx := context.Background()
	original, err := Build(paragraphVectors, Options{QueryEmbedder: newMock(), Threshold: 0.9})
	require.NoError(t, err)

	restored, err := FromSpec(original.Spec(), original.Embeddings(), Options{QueryEmbedder: newMock(), Threshold: 0.1})
	require.NoError(t, err)

	assert.Equal(t, original.Spec(), restored.Spec(), "persisted threshold wins")
	for _, query := range []string{"alpha", "beta", "both"} {
		for i, vector := range paragraphVectors {
			want, err := original.Search(ctx, vector, query)
			require.NoError(t, err)
			got, err := restored.Search(ctx, vector, query)
			require.NoError(t, err)
			assert.Equal(t, want, got, "query %q paragraph %d", query, i)
		}
	}
}

func TestFromSpec_DefaultsThreshold(t *testing.T) {
	ix, err := FromSpec(storage.IndexSpec{Dimension: 3}, paragraphVectors, Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultThreshold, ix.Threshold())
}
