// Package storage defines persistence for uploaded originals, the document registry and
// dispatch tickets.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// ErrNotFound is returned when a document, ticket or file does not exist.
var ErrNotFound = errors.New("not found")

// Storage defines registry and ticket persistence operations.
type Storage interface {
	// Document registry
	CreateDocument(ctx context.Context, doc *models.StoredDocument) error
	GetDocument(ctx context.Context, id string) (*models.StoredDocument, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.StoredDocument, error)
	CountDocuments(ctx context.Context) (int64, error)

	// Dispatch tickets
	CreateTicket(ctx context.Context, ticket *models.DispatchTicket) error
	UpdateTicket(ctx context.Context, ticket *models.DispatchTicket) error
	GetTicket(ctx context.Context, id string) (*models.DispatchTicket, error)
	CountTicketsByStatus(ctx context.Context) (map[models.TicketStatus]int64, error)

	Close() error
}
