// Package resolver maps flat paragraph ordinals back to text in the paged source document.
//
// Only embeddings are cached, not paragraph boundaries, so each page is assumed
// to hold word_count/25 paragraphs (fractional). Resolve walks the pages,
// subtracting each estimate from the ordinal until the remainder fits on the
// current page; the integer part of the remainder is the in-page paragraph.
//
//	pages with 50 and 75 words -> estimates 2 and 3
//	ordinal 1 -> page 0, paragraph 1
//	ordinal 2 -> page 1, paragraph 0
//
// Extract re-splits the page text on the blank-line delimiter. Ordinals past
// the last page and paragraph indexes past the end of a page fail with
// types.ErrResolution instead of returning empty text.
package resolver
