package extractor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/dshills/docindex-mcp/pkg/types"
)

// PageBreak separates pages in plain text documents
const PageBreak = "\f"

// ErrUnsupportedFormat is returned for documents no extractor understands
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Extractor returns the ordered pages of a document
type Extractor interface {
	Extract(ctx context.Context, path string) ([]types.Page, error)
}

// PDFExtractor extracts page text from PDF files
type PDFExtractor struct{}

// NewPDFExtractor creates a PDF extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads every page of the PDF at path. Pages without content are kept as
// empty pages so page indexes match the source document.
func (e *PDFExtractor) Extract(ctx context.Context, path string) (pages []types.Page, err error) {
	// The pdf package panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("%w: parse pdf %s: %v", types.ErrIO, path, r)
		}
	}()

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open pdf %s: %v", types.ErrIO, path, err)
	}
	defer func() { _ = f.Close() }()

	pages = make([]types.Page, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, types.NewPage(i-1, ""))
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: read page %d of %s: %v", types.ErrIO, i, path, err)
		}
		pages = append(pages, types.NewPage(i-1, text))
	}

	return pages, nil
}

// TextExtractor reads plain text files, splitting pages on form feeds
type TextExtractor struct{}

// NewTextExtractor creates a plain text extractor
func NewTextExtractor() *TextExtractor {
	return &TextExtractor{}
}

// Extract reads the text file at path
func (e *TextExtractor) Extract(ctx context.Context, path string) ([]types.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", types.ErrIO, path, err)
	}
	return SplitPages(string(data)), nil
}

// SplitPages splits text on form feeds into pages
func SplitPages(text string) []types.Page {
	if text == "" {
		return []types.Page{}
	}
	parts := strings.Split(text, PageBreak)
	pages := make([]types.Page, len(parts))
	for i, part := range parts {
		pages[i] = types.NewPage(i, part)
	}
	return pages
}

// Auto picks an extractor from the file extension
type Auto struct {
	byExt map[string]Extractor
}

// New creates an extractor handling .pdf, .txt and .md files
func New() *Auto {
	text := NewTextExtractor()
	return &Auto{byExt: map[string]Extractor{
		".pdf": NewPDFExtractor(),
		".txt": text,
		".md":  text,
	}}
}

// Extract dispatches on the extension of path
func (a *Auto) Extract(ctx context.Context, path string) ([]types.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	e, ok := a.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return e.Extract(ctx, path)
}

// Supported reports whether path has an extension Auto can extract
func (a *Auto) Supported(path string) bool {
	_, ok := a.byExt[strings.ToLower(filepath.Ext(path))]
	return ok
}
