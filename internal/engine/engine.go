// Package engine provides the search engine backends that hold index records.
package engine

import (
	"context"
	"errors"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// ErrIndexNotFound is returned when searching an index that was never created.
var ErrIndexNotFound = errors.New("index not found")

// Field names of the index schema.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldCategory    = "category"
	FieldFilename    = "filename"
	FieldDownloadURL = "download_url"
	FieldContent     = "content"
)

// SearchFields are the fields a free-text query is matched against.
var SearchFields = []string{FieldContent, FieldTitle, FieldDescription, FieldCategory}

// Engine stores index records and answers relevance-ranked queries.
type Engine interface {
	// EnsureIndex creates the index with the document schema if it does not exist.
	EnsureIndex(ctx context.Context, name string) error
	// Upsert writes the record under id, replacing any previous record with that id.
	Upsert(ctx context.Context, index, id string, record *models.IndexRecord) error
	// Search runs query against fields and returns at most limit hits, best first.
	Search(ctx context.Context, index, query string, fields []string, limit int) ([]Hit, error)
	// DocCount returns the number of records in index, or zero if the index does not exist.
	DocCount(ctx context.Context, index string) (uint64, error)
	Close() error
}

// Hit is one search result as returned by an engine.
type Hit struct {
	ID     string
	Score  float64
	Record models.IndexRecord
}
