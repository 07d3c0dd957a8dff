package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

const pdfMIME = "application/pdf"

func extractPDF(content []byte, logger *zap.Logger) (text string, err error) {
	// The decoder panics on some corrupt cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %v", ErrMalformedDocument, r)
		}
	}()
	if mt := mimetype.Detect(content); !mt.Is(pdfMIME) {
		return "", fmt.Errorf("%w: content is %s", ErrMalformedDocument, mt.String())
	}
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("%w: open PDF: %v", ErrMalformedDocument, err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			logger.Debug("skipping null page", zap.Int("page", i))
			continue
		}
		s, err := pageText(page)
		if err != nil {
			logger.Debug("skipping page without extractable text", zap.Int("page", i), zap.Error(err))
			continue
		}
		buf.WriteString(s)
	}
	return buf.String(), nil
}

// pageText joins the page's text runs in content-stream order. Text objects are not
// separated, so a page drawn as several BT blocks reads as one run.
func pageText(page pdf.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("decode page content: %v", r)
		}
	}()
	var sb strings.Builder
	for _, t := range page.Content().Text {
		sb.WriteString(t.S)
	}
	return sb.String(), nil
}
