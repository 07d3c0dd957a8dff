package dispatch

import (
	"context"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// TicketStore persists dispatch tickets.
type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.DispatchTicket) error
	UpdateTicket(ctx context.Context, ticket *models.DispatchTicket) error
	GetTicket(ctx context.Context, id string) (*models.DispatchTicket, error)
}
