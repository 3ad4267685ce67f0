package chunker

import (
	"strings"

	"github.com/dshills/docindex-mcp/pkg/types"
)

// Chunker splits paged document text into the document-wide paragraph stream
type Chunker struct {
	delimiter string
}

// New creates a new Chunker using the blank-line paragraph delimiter
func New() *Chunker {
	return &Chunker{
		delimiter: types.ParagraphDelimiter,
	}
}

// Segment splits text into paragraphs on the delimiter.
// Every span becomes a paragraph, empty ones included, so ordinals line up with
// a plain split of the same text. Empty text yields no paragraphs.
func (c *Chunker) Segment(text string) []types.Paragraph {
	if text == "" {
		return nil
	}

	spans := strings.Split(text, c.delimiter)
	paragraphs := make([]types.Paragraph, len(spans))
	for i, span := range spans {
		paragraphs[i] = types.Paragraph{
			Ordinal: i,
			Content: span,
		}
		paragraphs[i].ComputeContentHash()
		paragraphs[i].ComputeWordCount()
	}

	return paragraphs
}

// JoinPages flattens pages into one text, discarding page boundaries.
// Pages are joined with the delimiter so the last paragraph of a page and the
// first paragraph of the next never merge.
func (c *Chunker) JoinPages(pages []types.Page) string {
	if len(pages) == 0 {
		return ""
	}

	texts := make([]string, len(pages))
	empty := true
	for i, page := range pages {
		texts[i] = page.Text
		if page.Text != "" {
			empty = false
		}
	}

	// A document with no extractable text has no paragraphs at all
	if empty {
		return ""
	}

	return strings.Join(texts, c.delimiter)
}

// SegmentPages joins pages and segments the result
func (c *Chunker) SegmentPages(pages []types.Page) []types.Paragraph {
	return c.Segment(c.JoinPages(pages))
}

// Contents returns the paragraph texts in ordinal order
func Contents(paragraphs []types.Paragraph) []string {
	contents := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		contents[i] = p.Content
	}
	return contents
}
