// Package storage persists document cache entries in SQLite.
//
// Every directory that holds indexed documents gets one cache file named
// .docindex.db. Inside it, entries are keyed by the absolute document path,
// so documents that share a directory keep separate entries. An entry stores
// the document content hash, the index parameters and one little-endian
// float32 blob per paragraph ordinal.
//
// # Basic Usage
//
//	store := storage.NewSQLiteStorage()
//	defer store.Close()
//
//	err := store.Save(ctx, "/docs/report.pdf", &storage.CacheEntry{
//	    ContentHash: hash,
//	    Embeddings:  vectors,
//	    Index:       storage.IndexSpec{Threshold: 0.75, Provider: "openai", Model: "text-embedding-3-small"},
//	})
//
//	entry, err := store.Load(ctx, "/docs/report.pdf")
//	if errors.Is(err, types.ErrCacheMiss) {
//	    // build first
//	}
//
// Save runs in a single transaction, so a failed write leaves the previous
// entry untouched. Load never creates a cache file.
//
// # Build Modes
//
// The default build uses the pure Go driver (modernc.org/sqlite). Building
// with -tags sqlite_cgo switches to github.com/mattn/go-sqlite3.
//
// # Migrations
//
// ApplyMigrations runs on every newly opened cache file. Versions are
// compared with semantic versioning and recorded in schema_version.
package storage
