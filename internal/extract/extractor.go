// Package extract provides plain-text extraction from uploaded PDF documents.
package extract

import (
	"errors"

	"go.uber.org/zap"
)

// ErrMalformedDocument is returned when the bytes cannot be parsed as a PDF at all.
var ErrMalformedDocument = errors.New("malformed document")

// Extractor extracts plain text from PDF bytes.
type Extractor struct {
	logger *zap.Logger
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithLogger sets a logger for debug output (skipped pages and the like).
func WithLogger(l *zap.Logger) ExtractorOption {
	return func(e *Extractor) { e.logger = l }
}

// NewExtractor returns a new Extractor.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ExtractPDF returns the text of every page concatenated in page order, with no separator.
// Pages that are empty or fail to extract contribute nothing. The returned error wraps
// ErrMalformedDocument when the document structure itself cannot be decoded.
func (e *Extractor) ExtractPDF(content []byte) (string, error) {
	return extractPDF(content, e.logger)
}
