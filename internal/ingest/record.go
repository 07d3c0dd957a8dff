package ingest

import (
	"net/url"
	"strings"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// DownloadRoute is the path prefix under which stored originals are served.
const DownloadRoute = "/api/download/"

// RecordBuilder builds index records. The base URL is fixed at construction and never taken
// from a request.
type RecordBuilder struct {
	baseURL string
}

// NewRecordBuilder returns a builder producing download URLs under baseURL.
func NewRecordBuilder(baseURL string) *RecordBuilder {
	return &RecordBuilder{baseURL: strings.TrimRight(baseURL, "/")}
}

// DownloadURL returns the download reference for a stored filename.
func (b *RecordBuilder) DownloadURL(filename string) string {
	return b.baseURL + DownloadRoute + url.PathEscape(filename)
}

// Build returns the index record for a document stored as filename. Blank metadata fields
// take their defaults.
func (b *RecordBuilder) Build(filename string, meta Metadata, content string) models.IndexRecord {
	return models.IndexRecord{
		Title:       orDefault(meta.Title, models.DefaultTitle),
		Description: orDefault(meta.Description, models.DefaultDescription),
		Category:    orDefault(meta.Category, models.DefaultCategory),
		Filename:    filename,
		DownloadURL: b.DownloadURL(filename),
		Content:     content,
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
