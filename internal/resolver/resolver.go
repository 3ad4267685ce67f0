package resolver

import (
	"fmt"
	"strings"

	"github.com/dshills/docindex-mcp/pkg/types"
)

// WordsPerParagraph is the assumed average paragraph length used to estimate
// how many paragraphs a page holds
const WordsPerParagraph = 25

// EstimatedParagraphs returns the fractional paragraph count of a page
func EstimatedParagraphs(page types.Page) float64 {
	return float64(page.WordCount()) / WordsPerParagraph
}

// Resolve maps a document-wide paragraph ordinal to a page and in-page paragraph.
//
// Page boundaries are not cached, so the position is estimated: each page is
// assumed to hold words/25 paragraphs. The estimate can land on the wrong
// paragraph when real paragraphs are much longer or shorter than 25 words.
func Resolve(ordinal int, pages []types.Page) (types.Position, error) {
	if ordinal < 0 {
		return types.Position{}, fmt.Errorf("%w: negative ordinal %d", types.ErrResolution, ordinal)
	}

	remainder := float64(ordinal)
	for i, page := range pages {
		estimate := EstimatedParagraphs(page)
		if remainder < estimate {
			return types.Position{Page: i, Paragraph: int(remainder)}, nil
		}
		remainder -= estimate
	}

	return types.Position{}, fmt.Errorf("%w: ordinal %d is past the last of %d pages",
		types.ErrResolution, ordinal, len(pages))
}

// Extract returns the paragraph text at pos by re-splitting the page text
func Extract(pages []types.Page, pos types.Position) (string, error) {
	if pos.Page < 0 || pos.Page >= len(pages) {
		return "", fmt.Errorf("%w: page %d out of range (%d pages)", types.ErrResolution, pos.Page, len(pages))
	}
	paragraphs := pages[pos.Page].Paragraphs()
	if pos.Paragraph < 0 || pos.Paragraph >= len(paragraphs) {
		return "", fmt.Errorf("%w: paragraph %d out of range on page %d (%d paragraphs)",
			types.ErrResolution, pos.Paragraph, pos.Page, len(paragraphs))
	}
	return paragraphs[pos.Paragraph], nil
}

// Text resolves ordinal and extracts its paragraph
func Text(ordinal int, pages []types.Page) (string, error) {
	pos, err := Resolve(ordinal, pages)
	if err != nil {
		return "", err
	}
	text, err := Extract(pages, pos)
	if err != nil {
		return "", fmt.Errorf("ordinal %d: %w", ordinal, err)
	}
	return text, nil
}

// Join resolves every ordinal in order and concatenates the paragraphs,
// each followed by the paragraph delimiter. No ordinals yields "".
func Join(ordinals []int, pages []types.Page) (string, error) {
	var b strings.Builder
	for _, ordinal := range ordinals {
		text, err := Text(ordinal, pages)
		if err != nil {
			return "", err
		}
		b.WriteString(text)
		b.WriteString(types.ParagraphDelimiter)
	}
	return b.String(), nil
}
