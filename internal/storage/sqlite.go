package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dshills/docindex-mcp/pkg/types"
)

// SQLiteStorage implements Storage with one SQLite cache file per document directory.
// Handles are opened lazily and kept until Close, or until the file behind them
// is removed or replaced.
type SQLiteStorage struct {
	mu  sync.Mutex
	dbs map[string]*cacheHandle // keyed by cache file path
}

// cacheHandle is an open cache file and the identity of the file it was opened on
type cacheHandle struct {
	db   *sql.DB
	info os.FileInfo
}

// errNoCacheFile is returned by open when the cache file does not exist and create is false
var errNoCacheFile = errors.New("cache file does not exist")

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // SQLite benefits from single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage() *SQLiteStorage {
	return &SQLiteStorage{dbs: make(map[string]*cacheHandle)}
}

// open returns the handle for cachePath, creating the file only when create is set
func (s *SQLiteStorage) open(ctx context.Context, cachePath string, create bool) (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info, err := os.Stat(cachePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	exists := err == nil

	if h, ok := s.dbs[cachePath]; ok {
		if exists && os.SameFile(h.info, info) {
			return h.db, nil
		}
		// Deleted or replaced on disk; the old handle points at a stale inode
		_ = h.db.Close()
		delete(s.dbs, cachePath)
	}

	if !exists && !create {
		return nil, errNoCacheFile
	}

	db, err := openDatabase(cachePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	info, err = os.Stat(cachePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to stat cache file: %w", err)
	}

	s.dbs[cachePath] = &cacheHandle{db: db, info: info}
	return db, nil
}

// Close closes every open cache file
func (s *SQLiteStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	for path, h := range s.dbs {
		if err := h.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", path, err))
		}
		delete(s.dbs, path)
	}
	return errors.Join(errs...)
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// documentRow mirrors a row of the documents table
type documentRow struct {
	id          int64
	path        string
	contentHash [32]byte
	paragraphs  int
	spec        IndexSpec
	createdAt   time.Time
	updatedAt   time.Time
}

func getDocumentWithQuerier(ctx context.Context, q querier, key string) (*documentRow, error) {
	query := `
		SELECT id, document_path, content_hash, paragraph_count, threshold,
		       dimension, provider, model, created_at, updated_at
		FROM documents
		WHERE document_path = ?
	`
	var row documentRow
	var hash []byte
	err := q.QueryRowContext(ctx, query, key).Scan(
		&row.id, &row.path, &hash, &row.paragraphs, &row.spec.Threshold,
		&row.spec.Dimension, &row.spec.Provider, &row.spec.Model,
		&row.createdAt, &row.updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", types.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read document %s: %v", types.ErrIO, key, err)
	}
	if len(hash) != len(row.contentHash) {
		return nil, fmt.Errorf("%w: document %s has a %d-byte content hash", types.ErrIO, key, len(hash))
	}
	copy(row.contentHash[:], hash)
	return &row, nil
}

func listEmbeddingsWithQuerier(ctx context.Context, q querier, documentID int64, count int) ([][]float32, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT ordinal, vector FROM embeddings WHERE document_id = ? ORDER BY ordinal", documentID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	embeddings := make([][]float32, 0, count)
	for rows.Next() {
		var ordinal int
		var blob []byte
		if err := rows.Scan(&ordinal, &blob); err != nil {
			return nil, err
		}
		if ordinal != len(embeddings) {
			return nil, fmt.Errorf("missing embedding for ordinal %d", len(embeddings))
		}
		vector, err := deserializeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("ordinal %d: %w", ordinal, err)
		}
		embeddings = append(embeddings, vector)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(embeddings) != count {
		return nil, fmt.Errorf("expected %d embeddings, found %d", count, len(embeddings))
	}
	return embeddings, nil
}

// Load returns the cache entry for documentPath
func (s *SQLiteStorage) Load(ctx context.Context, documentPath string) (*CacheEntry, error) {
	key := documentKey(documentPath)
	db, err := s.open(ctx, CachePath(documentPath), false)
	if errors.Is(err, errNoCacheFile) {
		return nil, fmt.Errorf("%w: %s", types.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	row, err := getDocumentWithQuerier(ctx, db, key)
	if err != nil {
		return nil, err
	}

	embeddings, err := listEmbeddingsWithQuerier(ctx, db, row.id, row.paragraphs)
	if err != nil {
		return nil, fmt.Errorf("%w: load embeddings for %s: %v", types.ErrIO, key, err)
	}

	return &CacheEntry{
		DocumentPath: row.path,
		ContentHash:  row.contentHash,
		Embeddings:   embeddings,
		Index:        row.spec,
		CreatedAt:    row.createdAt,
		UpdatedAt:    row.updatedAt,
	}, nil
}

// Save replaces the cache entry for documentPath. Either the whole entry is written or nothing is.
func (s *SQLiteStorage) Save(ctx context.Context, documentPath string, entry *CacheEntry) error {
	if entry == nil {
		return fmt.Errorf("nil cache entry")
	}
	dimension, err := checkDimensions(entry)
	if err != nil {
		return err
	}

	key := documentKey(documentPath)
	db, err := s.open(ctx, CachePath(documentPath), true)
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", types.ErrIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (document_path, content_hash, paragraph_count, threshold,
		                       dimension, provider, model, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(document_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			paragraph_count = excluded.paragraph_count,
			threshold = excluded.threshold,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model,
			updated_at = excluded.updated_at
	`, key, entry.ContentHash[:], len(entry.Embeddings), entry.Index.Threshold,
		dimension, entry.Index.Provider, entry.Index.Model, now, now)
	if err != nil {
		return fmt.Errorf("%w: upsert document %s: %v", types.ErrIO, key, err)
	}

	var documentID int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM documents WHERE document_path = ?", key).Scan(&documentID); err != nil {
		return fmt.Errorf("%w: read document id: %v", types.ErrIO, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM embeddings WHERE document_id = ?", documentID); err != nil {
		return fmt.Errorf("%w: clear embeddings: %v", types.ErrIO, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO embeddings (document_id, ordinal, vector, dimension) VALUES (?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("%w: prepare embedding insert: %v", types.ErrIO, err)
	}
	defer func() { _ = stmt.Close() }()

	for ordinal, vector := range entry.Embeddings {
		if _, err := stmt.ExecContext(ctx, documentID, ordinal, serializeVector(vector), len(vector)); err != nil {
			return fmt.Errorf("%w: insert embedding %d: %v", types.ErrIO, ordinal, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrIO, err)
	}
	return nil
}

// checkDimensions returns the common vector length of entry, filling Index.Dimension when unset
func checkDimensions(entry *CacheEntry) (int, error) {
	dimension := entry.Index.Dimension
	for i, vector := range entry.Embeddings {
		if dimension == 0 {
			dimension = len(vector)
		}
		if len(vector) != dimension {
			return 0, fmt.Errorf("embedding %d has dimension %d, expected %d", i, len(vector), dimension)
		}
	}
	entry.Index.Dimension = dimension
	return dimension, nil
}

// Delete removes the cache entry for documentPath
func (s *SQLiteStorage) Delete(ctx context.Context, documentPath string) error {
	key := documentKey(documentPath)
	db, err := s.open(ctx, CachePath(documentPath), false)
	if errors.Is(err, errNoCacheFile) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", types.ErrIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embeddings WHERE document_id IN (SELECT id FROM documents WHERE document_path = ?)", key); err != nil {
		return fmt.Errorf("%w: delete embeddings: %v", types.ErrIO, err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents WHERE document_path = ?", key); err != nil {
		return fmt.Errorf("%w: delete document: %v", types.ErrIO, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrIO, err)
	}
	return nil
}

// Status reports metadata for the cached entry of documentPath
func (s *SQLiteStorage) Status(ctx context.Context, documentPath string) (*EntryStatus, error) {
	key := documentKey(documentPath)
	cachePath := CachePath(documentPath)
	db, err := s.open(ctx, cachePath, false)
	if errors.Is(err, errNoCacheFile) {
		return nil, fmt.Errorf("%w: %s", types.ErrCacheMiss, key)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrIO, err)
	}

	row, err := getDocumentWithQuerier(ctx, db, key)
	if err != nil {
		return nil, err
	}

	status := &EntryStatus{
		DocumentPath: row.path,
		CachePath:    cachePath,
		ContentHash:  row.contentHash,
		Paragraphs:   row.paragraphs,
		Index:        row.spec,
		UpdatedAt:    row.updatedAt,
	}

	// Calculate database size
	var pageCount, pageSize int
	if err := db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.CacheSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	return status, nil
}
