// Package extractor turns documents into ordered pages of text.
//
// PDFExtractor reads PDFs with github.com/ledongthuc/pdf, one types.Page per
// PDF page, word counts included. TextExtractor reads plain text and splits
// pages on form feeds. New returns an extractor that dispatches on the file
// extension.
package extractor
