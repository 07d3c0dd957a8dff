package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/models"
)

// Worker performs one background indexing attempt and records the outcome on the ticket.
type Worker struct {
	writer  *Writer
	tickets TicketStore
	logger  *zap.Logger
}

// NewWorker returns a worker writing through w. tickets may be nil.
func NewWorker(w *Writer, tickets TicketStore, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{writer: w, tickets: tickets, logger: logger}
}

// Process runs attempt number attempt (1-based) of task. When final is true a failure marks
// the ticket failed; otherwise it marks it retrying. The write error is returned unchanged.
func (w *Worker) Process(ctx context.Context, task Task, attempt int, final bool) error {
	ticket := task.ticket(models.TicketRunning)
	ticket.Attempts = attempt
	w.record(ctx, ticket)

	err := w.writer.Write(ctx, task.IndexName, task.DocumentID, &task.Record)
	fields := []zap.Field{
		zap.String("ticket", task.TicketID),
		zap.String("id", task.DocumentID),
		zap.String("index", task.IndexName),
		zap.Int("attempt", attempt),
	}
	if err == nil {
		ticket.Status = models.TicketSucceeded
		ticket.LastError = ""
		w.record(ctx, ticket)
		w.logger.Info("document indexed", fields...)
		return nil
	}

	ticket.LastError = err.Error()
	if final {
		ticket.Status = models.TicketFailed
		w.logger.Error("indexing failed", append(fields, zap.Error(err))...)
	} else {
		ticket.Status = models.TicketRetrying
		w.logger.Warn("indexing attempt failed, will retry", append(fields, zap.Error(err))...)
	}
	w.record(ctx, ticket)
	return fmt.Errorf("index %s: %w", task.DocumentID, err)
}

// record stores the ticket state. Failures are logged only: tickets are advisory.
func (w *Worker) record(ctx context.Context, ticket *models.DispatchTicket) {
	if w.tickets == nil || ticket.ID == "" {
		return
	}
	if err := w.tickets.UpdateTicket(context.WithoutCancel(ctx), ticket); err != nil {
		w.logger.Warn("ticket update failed", zap.String("ticket", ticket.ID), zap.Error(err))
	}
}
