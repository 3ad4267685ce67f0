package storage

import (
	"context"
	"path/filepath"
	"time"
)

// CacheFileName is the fixed name of the cache file written next to indexed documents
const CacheFileName = ".docindex.db"

// Storage persists document cache entries
type Storage interface {
	// Load returns the entry for documentPath or an error wrapping types.ErrCacheMiss
	Load(ctx context.Context, documentPath string) (*CacheEntry, error)
	// Save replaces the entry for documentPath in a single transaction
	Save(ctx context.Context, documentPath string, entry *CacheEntry) error
	// Delete removes the entry for documentPath; a missing entry is not an error
	Delete(ctx context.Context, documentPath string) error
	// Status reports entry metadata without loading vectors
	Status(ctx context.Context, documentPath string) (*EntryStatus, error)

	Close() error
}

// IndexSpec is the persisted form of a document index.
// Vectors are stored separately; the spec holds what is needed to rebuild the index around them.
type IndexSpec struct {
	Threshold float64
	Dimension int
	Provider  string
	Model     string
}

// CacheEntry pairs a document's paragraph embeddings with its index
type CacheEntry struct {
	DocumentPath string
	ContentHash  [32]byte
	Embeddings   [][]float32 // embeddings[i] belongs to paragraph ordinal i
	Index        IndexSpec
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EntryStatus contains statistics about a cached document
type EntryStatus struct {
	DocumentPath string
	CachePath    string
	ContentHash  [32]byte
	Paragraphs   int
	Index        IndexSpec
	CacheSizeMB  float64
	UpdatedAt    time.Time
}

// CachePath returns the cache file shared by every document in documentPath's directory
func CachePath(documentPath string) string {
	return filepath.Join(filepath.Dir(documentKey(documentPath)), CacheFileName)
}

// documentKey normalizes a document path into the key used inside the cache file
func documentKey(documentPath string) string {
	if abs, err := filepath.Abs(documentPath); err == nil {
		return abs
	}
	return filepath.Clean(documentPath)
}
