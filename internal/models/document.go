// Package models defines core data structures for uploaded documents, index records, and search results.
package models

import "time"

// Metadata defaults applied when the uploader leaves a field blank.
const (
	DefaultTitle       = "Untitled Document"
	DefaultDescription = ""
	DefaultCategory    = "General"
)

// IndexRecord is the searchable record stored in the search engine for one upload.
// All six fields are always populated.
type IndexRecord struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
	Content     string `json:"content"`
}

// StoredDocument is the registry row for a successfully ingested upload.
type StoredDocument struct {
	ID           string    `json:"id" db:"id"`
	Filename     string    `json:"filename" db:"filename"`
	OriginalName string    `json:"original_name" db:"original_name"`
	Title        string    `json:"title" db:"title"`
	Description  string    `json:"description" db:"description"`
	Category     string    `json:"category" db:"category"`
	DownloadURL  string    `json:"download_url" db:"download_url"`
	SizeBytes    int64     `json:"size_bytes" db:"size_bytes"`
	TicketID     string    `json:"ticket_id" db:"ticket_id"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
