// Package types provides shared type definitions for the docindex MCP server.
//
// This package defines the domain types passed between the extraction, segmentation,
// embedding, caching and resolution stages, plus the error taxonomy of the pipeline.
//
// # Core Types
//
// Page is the extracted text of a single PDF page together with its word count:
//
//	page := types.NewPage(0, "Alpha para one.\n\nAlpha para two.")
//	page.WordCount() // 6
//
// Paragraph is one span of the page-flattened paragraph stream. Its Ordinal is the
// position used to key embeddings:
//
//	p := types.Paragraph{Ordinal: 2, Content: "Beta para one."}
//	p.ComputeContentHash()
//
// Position maps an ordinal back to a page and an in-page paragraph index.
//
// # Errors
//
// All pipeline failures wrap one of the sentinel errors, so callers can branch
// with errors.Is:
//
//	if errors.Is(err, types.ErrNotIndexed) {
//	    // build the document first
//	}
//
// ErrNotIndexed wraps ErrCacheMiss, so errors.Is(err, types.ErrCacheMiss) also holds
// for searches against documents that were never built.
package types
