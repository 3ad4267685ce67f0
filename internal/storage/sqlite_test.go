package storage

import (
	"context"
	"crypto/sha256"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/docindex-mcp/pkg/types"
)

func setupTestStorage(t *testing.T) (*SQLiteStorage, string) {
	t.Helper()
	storage := NewSQLiteStorage()
	t.Cleanup(func() { _ = storage.Close() })
	return storage, t.TempDir()
}

func testEntry(hashSeed string, embeddings ...[]float32) *CacheEntry {
	return &CacheEntry{
		ContentHash: sha256.Sum256([]byte(hashSeed)),
		Embeddings:  embeddings,
		Index: IndexSpec{
			Threshold: 0.75,
			Provider:  "local",
			Model:     "local-hashed-bow",
		},
	}
}

func TestCachePath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, CacheFileName), CachePath(filepath.Join(dir, "report.pdf")))
	assert.Equal(t, CachePath(filepath.Join(dir, "a.pdf")), CachePath(filepath.Join(dir, "b.pdf")),
		"documents in one directory share a cache file")
}

func TestLoad_NoCacheFile(t *testing.T) {
	storage, dir := setupTestStorage(t)

	_, err := storage.Load(context.Background(), filepath.Join(dir, "missing.pdf"))
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	_, statErr := os.Stat(filepath.Join(dir, CacheFileName))
	assert.True(t, os.IsNotExist(statErr), "load must not create the cache file")
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	entry := testEntry("v1",
		[]float32{0.1, -0.2, 0.3},
		[]float32{1e-8, 3.4028235e38, -0},
		[]float32{0, 0, 0},
	)
	require.NoError(t, storage.Save(ctx, doc, entry))

	loaded, err := storage.Load(ctx, doc)
	require.NoError(t, err)

	assert.Equal(t, doc, loaded.DocumentPath)
	assert.Equal(t, entry.ContentHash, loaded.ContentHash)
	assert.Equal(t, entry.Embeddings, loaded.Embeddings, "float32 vectors must round trip exactly")
	assert.Equal(t, IndexSpec{Threshold: 0.75, Dimension: 3, Provider: "local", Model: "local-hashed-bow"}, loaded.Index)
	assert.False(t, loaded.UpdatedAt.IsZero())

	_, err = os.Stat(filepath.Join(dir, CacheFileName))
	assert.NoError(t, err)
}

func TestSave_EmptyDocument(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "empty.pdf")

	require.NoError(t, storage.Save(ctx, doc, testEntry("")))

	loaded, err := storage.Load(ctx, doc)
	require.NoError(t, err)
	assert.Empty(t, loaded.Embeddings)
	assert.Equal(t, 0, loaded.Index.Dimension)
}

func TestSave_Overwrite(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	require.NoError(t, storage.Save(ctx, doc, testEntry("v1", []float32{1, 0}, []float32{0, 1}, []float32{1, 1})))
	first, err := storage.Load(ctx, doc)
	require.NoError(t, err)

	second := testEntry("v2", []float32{0.5, 0.5})
	require.NoError(t, storage.Save(ctx, doc, second))

	loaded, err := storage.Load(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, second.ContentHash, loaded.ContentHash)
	assert.Equal(t, [][]float32{{0.5, 0.5}}, loaded.Embeddings, "old ordinals are removed")
	assert.Equal(t, first.CreatedAt.Unix(), loaded.CreatedAt.Unix())
}

func TestSave_DocumentsInSameDirectoryDoNotCollide(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.pdf")

	require.NoError(t, storage.Save(ctx, a, testEntry("a", []float32{1, 2})))
	require.NoError(t, storage.Save(ctx, b, testEntry("b", []float32{3, 4}, []float32{5, 6})))

	loadedA, err := storage.Load(ctx, a)
	require.NoError(t, err)
	loadedB, err := storage.Load(ctx, b)
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 2}}, loadedA.Embeddings)
	assert.Equal(t, [][]float32{{3, 4}, {5, 6}}, loadedB.Embeddings)

	_, err = storage.Load(ctx, filepath.Join(dir, "c.pdf"))
	assert.ErrorIs(t, err, types.ErrCacheMiss, "an existing cache file without the entry is still a miss")
}

func TestSave_DimensionMismatch(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	err := storage.Save(ctx, doc, testEntry("x", []float32{1, 2}, []float32{1, 2, 3}))
	require.Error(t, err)

	_, err = storage.Load(ctx, doc)
	assert.ErrorIs(t, err, types.ErrCacheMiss, "a rejected entry writes nothing")
}

func TestSave_NilEntry(t *testing.T) {
	storage, dir := setupTestStorage(t)
	assert.Error(t, storage.Save(context.Background(), filepath.Join(dir, "doc.pdf"), nil))
}

func TestSave_ReopenFromDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	writer := NewSQLiteStorage()
	require.NoError(t, writer.Save(ctx, doc, testEntry("v1", []float32{0.25, 0.75})))
	require.NoError(t, writer.Close())

	reader := NewSQLiteStorage()
	defer reader.Close()

	loaded, err := reader.Load(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.25, 0.75}}, loaded.Embeddings)
}

func TestLoad_CacheFileRemovedWhileOpen(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")
	cachePath := filepath.Join(dir, CacheFileName)

	require.NoError(t, storage.Save(ctx, doc, testEntry("v1", []float32{1, 0})))
	_, err := storage.Load(ctx, doc)
	require.NoError(t, err)

	for _, suffix := range []string{"", "-wal", "-shm"} {
		err := os.Remove(cachePath + suffix)
		if err != nil {
			require.True(t, os.IsNotExist(err), err)
		}
	}

	_, err = storage.Load(ctx, doc)
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	require.NoError(t, storage.Save(ctx, doc, testEntry("v2", []float32{0, 1})))
	_, err = os.Stat(cachePath)
	require.NoError(t, err, "save must recreate the removed cache file")

	// A fresh handle sees the write, so it landed in the new file
	reader := NewSQLiteStorage()
	defer reader.Close()
	loaded, err := reader.Load(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}}, loaded.Embeddings)
}

func TestLoad_CacheFileReplacedWhileOpen(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	require.NoError(t, storage.Save(ctx, doc, testEntry("v1", []float32{1, 0})))

	// Another process writes a new cache file in its place
	otherDir := t.TempDir()
	other := NewSQLiteStorage()
	require.NoError(t, other.Save(ctx, filepath.Join(otherDir, "doc.pdf"), testEntry("v2", []float32{0, 1})))
	require.NoError(t, other.Close())
	require.NoError(t, os.Remove(filepath.Join(dir, CacheFileName)))
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(filepath.Join(dir, CacheFileName) + suffix)
	}
	require.NoError(t, os.Rename(filepath.Join(otherDir, CacheFileName), filepath.Join(dir, CacheFileName)))

	// Entries are keyed by absolute path, so the moved file has no row for doc
	_, err := storage.Load(ctx, doc)
	assert.ErrorIs(t, err, types.ErrCacheMiss)
}

func TestDelete(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")
	other := filepath.Join(dir, "other.pdf")

	// Nothing to delete yet
	require.NoError(t, storage.Delete(ctx, doc))

	require.NoError(t, storage.Save(ctx, doc, testEntry("d", []float32{1})))
	require.NoError(t, storage.Save(ctx, other, testEntry("o", []float32{2})))
	require.NoError(t, storage.Delete(ctx, doc))

	_, err := storage.Load(ctx, doc)
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	loaded, err := storage.Load(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{2}}, loaded.Embeddings)
}

func TestStatus(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()
	doc := filepath.Join(dir, "doc.pdf")

	_, err := storage.Status(ctx, doc)
	assert.ErrorIs(t, err, types.ErrCacheMiss)

	entry := testEntry("s", []float32{1, 0}, []float32{0, 1})
	require.NoError(t, storage.Save(ctx, doc, entry))

	status, err := storage.Status(ctx, doc)
	require.NoError(t, err)
	assert.Equal(t, doc, status.DocumentPath)
	assert.Equal(t, filepath.Join(dir, CacheFileName), status.CachePath)
	assert.Equal(t, 2, status.Paragraphs)
	assert.Equal(t, 2, status.Index.Dimension)
	assert.Equal(t, entry.ContentHash, status.ContentHash)
	assert.Greater(t, status.CacheSizeMB, 0.0)
}

func TestConcurrentSaves(t *testing.T) {
	storage, dir := setupTestStorage(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			doc := filepath.Join(dir, "doc"+string(rune('a'+i))+".pdf")
			errs <- storage.Save(ctx, doc, testEntry(doc, []float32{float32(i)}))
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	for i := 0; i < 8; i++ {
		doc := filepath.Join(dir, "doc"+string(rune('a'+i))+".pdf")
		loaded, err := storage.Load(ctx, doc)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{float32(i)}}, loaded.Embeddings)
	}
}
