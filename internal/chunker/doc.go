// Package chunker divides extracted document text into paragraphs for embedding and search.
//
// Paragraphs are delimited by a blank line ("\n\n"). Every span produced by the split
// becomes a paragraph, including empty ones, and no trimming is applied. The ordinal of
// a paragraph is its 0-based index in the page-flattened stream and is the key that ties
// it to its embedding.
//
// # Basic Usage
//
//	c := chunker.New()
//	paragraphs := c.SegmentPages(pages)
//	for _, p := range paragraphs {
//	    fmt.Printf("paragraph %d: %d words\n", p.Ordinal, p.WordCount)
//	}
//
// # Page Boundaries
//
// Pages are joined with the delimiter before splitting, so a page break always ends a
// paragraph:
//
//	page 0: "Alpha para one.\n\nAlpha para two."
//	page 1: "Beta para one."
//
//	ordinal 0: "Alpha para one."
//	ordinal 1: "Alpha para two."
//	ordinal 2: "Beta para one."
//
// A document without any extractable text produces zero paragraphs; a non-empty text
// without a delimiter produces exactly one.
package chunker
