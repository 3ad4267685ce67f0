// Package indexer coordinates the document pipeline.
//
// BuildDocumentIndex extracts a document's pages, joins them, segments the text
// into paragraphs, embeds every paragraph through the rate-limited batch
// embedder and caches the vectors with the index spec in the SQLite file next
// to the document. A later build with unchanged content and model is served
// from the cache without calling the embedding service.
//
//	idx := indexer.New(store, extractor.New(), batch, indexer.Config{Logger: logger})
//
//	_, stats, err := idx.BuildDocumentIndex(ctx, "/docs/report.pdf", indexer.BuildOptions{})
//	result, err := idx.SearchDocumentIndex(ctx, "/docs/report.pdf", "quarterly revenue")
//	fmt.Print(result.MatchingText)
//
// # Search
//
// SearchDocumentIndex compares the query with every cached paragraph vector in
// ordinal order, optionally sleeping every LocalRateLimit paragraphs, then maps
// each matching ordinal back to page text with the resolver. The document is
// re-extracted for that step; if its content hash no longer matches the cache
// the result is marked Stale and a warning is logged.
//
// # Concurrency
//
// Each document path has a non-blocking lock. A second build of the same
// document while one is running fails with types.ErrIndexingInProgress rather
// than waiting. BuildDocumentIndexes builds distinct documents in parallel
// with an errgroup bounded by Config.Workers.
package indexer
