package types

import (
	"crypto/sha256"
	"encoding/binary"
	"strings"
)

// ParagraphDelimiter separates paragraphs in extracted document text
const ParagraphDelimiter = "\n\n"

// Document is a paged source document identified by its local path
type Document struct {
	Path  string
	Pages []Page
}

// ContentHash fingerprints the extracted pages: text and word counts, in page order.
// Two extractions of an unchanged document hash equal.
func (d Document) ContentHash() [32]byte {
	h := sha256.New()
	var buf [8]byte
	for _, p := range d.Pages {
		binary.LittleEndian.PutUint64(buf[:], uint64(len(p.Text)))
		h.Write(buf[:])
		h.Write([]byte(p.Text))
		binary.LittleEndian.PutUint64(buf[:], uint64(p.Words))
		h.Write(buf[:])
	}
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Page is the extracted text of one document page
type Page struct {
	Number int // 0-based page index
	Text   string

	// Words is the page's word count as reported by the extractor.
	// Position resolution derives paragraph density from it.
	Words int
}

// NewPage builds a page and counts its words
func NewPage(number int, text string) Page {
	return Page{
		Number: number,
		Text:   text,
		Words:  CountWords(text),
	}
}

// WordCount returns the page's word count
func (p Page) WordCount() int {
	return p.Words
}

// Paragraphs re-splits the page text on the paragraph delimiter
func (p Page) Paragraphs() []string {
	return strings.Split(p.Text, ParagraphDelimiter)
}

// Paragraph is one span of the document-wide paragraph stream
type Paragraph struct {
	// Ordinal is the 0-based position in the page-flattened paragraph sequence
	Ordinal int

	Content     string
	ContentHash [32]byte // SHA-256 of Content
	WordCount   int
}

// ComputeContentHash computes the SHA-256 hash of the paragraph content
func (p *Paragraph) ComputeContentHash() {
	p.ContentHash = sha256.Sum256([]byte(p.Content))
}

// ComputeWordCount counts whitespace separated words in the paragraph
func (p *Paragraph) ComputeWordCount() int {
	p.WordCount = CountWords(p.Content)
	return p.WordCount
}

// Position locates a paragraph inside the paged source document
type Position struct {
	Page      int // 0-based page index
	Paragraph int // 0-based paragraph index within the page
}

// CountWords counts whitespace separated words
func CountWords(text string) int {
	return len(strings.Fields(text))
}
