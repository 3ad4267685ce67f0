package types

import (
	"errors"
	"fmt"
)

// Pipeline errors. Callers match them with errors.Is; every layer wraps with context.
var (
	// ErrAuth is returned by the transport when the bearer credential is missing or wrong
	ErrAuth = errors.New("authentication failed")

	// ErrCacheMiss is returned when no cache entry exists for a document
	ErrCacheMiss = errors.New("cache miss")

	// ErrNotIndexed is returned by search when the document was never built.
	// It wraps ErrCacheMiss so both checks succeed.
	ErrNotIndexed = fmt.Errorf("document not indexed: %w", ErrCacheMiss)

	// ErrEmbeddingService wraps any failure of the external embedding service
	ErrEmbeddingService = errors.New("embedding service error")

	// ErrResolution means a paragraph ordinal could not be mapped back to page text
	ErrResolution = errors.New("paragraph resolution error")

	// ErrIO covers document fetch/read and cache read/write failures
	ErrIO = errors.New("i/o error")

	// ErrIndexingInProgress is returned when another build holds the document lock
	ErrIndexingInProgress = errors.New("indexing already in progress")

	// ErrEmptyContent is returned when a paragraph or query has no text where text is required
	ErrEmptyContent = errors.New("content cannot be empty")
)
