package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/pdfsearch/internal/fileid"
	"github.com/hyperjump/pdfsearch/internal/models"
	"github.com/hyperjump/pdfsearch/internal/storage"
)

// Dispatcher hands index records to the engine and issues a ticket for each hand-off.
type Dispatcher struct {
	mode    models.DispatchMode
	writer  *Writer
	queue   Queue
	tickets TicketStore
	logger  *zap.Logger
	newID   func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithTickets records tickets in store.
func WithTickets(store TicketStore) Option {
	return func(d *Dispatcher) {
		d.tickets = store
	}
}

// NewSyncDispatcher returns a dispatcher that writes each record before returning.
func NewSyncDispatcher(w *Writer, opts ...Option) *Dispatcher {
	return newDispatcher(models.DispatchSync, w, nil, opts)
}

// NewAsyncDispatcher returns a dispatcher that enqueues each record on q.
func NewAsyncDispatcher(q Queue, opts ...Option) *Dispatcher {
	return newDispatcher(models.DispatchAsync, nil, q, opts)
}

func newDispatcher(mode models.DispatchMode, w *Writer, q Queue, opts []Option) *Dispatcher {
	d := &Dispatcher{mode: mode, writer: w, queue: q, logger: zap.NewNop(), newID: fileid.NewID}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Mode returns the dispatch mode.
func (d *Dispatcher) Mode() models.DispatchMode {
	return d.mode
}

// Dispatch indexes record under id. In sync mode the write happens now, once, and its
// failure is returned wrapping ErrIndexingFailed. In async mode the task is enqueued and a
// pending ticket returned; only a failure to enqueue is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, indexName, id string, record models.IndexRecord) (*models.DispatchTicket, error) {
	now := time.Now().UTC()
	ticket := &models.DispatchTicket{
		ID:         d.newID(),
		DocumentID: id,
		IndexName:  indexName,
		Mode:       d.mode,
		Status:     models.TicketPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if d.mode == models.DispatchAsync {
		d.create(ctx, ticket)
		task := Task{TicketID: ticket.ID, IndexName: indexName, DocumentID: id, Record: record}
		if err := d.queue.Enqueue(ctx, task); err != nil {
			ticket.Status = models.TicketFailed
			ticket.LastError = err.Error()
			d.update(ctx, ticket)
			d.logger.Error("enqueue failed", zap.String("id", id), zap.Error(err))
			return ticket, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
		}
		d.logger.Debug("indexing enqueued", zap.String("id", id), zap.String("ticket", ticket.ID))
		return ticket, nil
	}

	ticket.Status = models.TicketRunning
	ticket.Attempts = 1
	d.create(ctx, ticket)
	if err := d.writer.Write(ctx, indexName, id, &record); err != nil {
		ticket.Status = models.TicketFailed
		ticket.LastError = err.Error()
		d.update(ctx, ticket)
		d.logger.Error("indexing failed", zap.String("id", id), zap.String("index", indexName), zap.Error(err))
		return ticket, fmt.Errorf("%w: %v", ErrIndexingFailed, err)
	}
	ticket.Status = models.TicketSucceeded
	d.update(ctx, ticket)
	d.logger.Info("document indexed", zap.String("id", id), zap.String("index", indexName))
	return ticket, nil
}

// Ticket returns the stored ticket with the given id.
func (d *Dispatcher) Ticket(ctx context.Context, ticketID string) (*models.DispatchTicket, error) {
	if d.tickets == nil {
		return nil, fmt.Errorf("ticket %s: %w", ticketID, storage.ErrNotFound)
	}
	return d.tickets.GetTicket(ctx, ticketID)
}

// Close closes the queue, if any, waiting for in-process work where the queue supports it.
func (d *Dispatcher) Close() error {
	if d.queue == nil {
		return nil
	}
	return d.queue.Close()
}

func (d *Dispatcher) create(ctx context.Context, ticket *models.DispatchTicket) {
	if d.tickets == nil {
		return
	}
	if err := d.tickets.CreateTicket(ctx, ticket); err != nil {
		d.logger.Warn("ticket create failed", zap.String("ticket", ticket.ID), zap.Error(err))
	}
}

func (d *Dispatcher) update(ctx context.Context, ticket *models.DispatchTicket) {
	if d.tickets == nil {
		return
	}
	if err := d.tickets.UpdateTicket(context.WithoutCancel(ctx), ticket); err != nil {
		d.logger.Warn("ticket update failed", zap.String("ticket", ticket.ID), zap.Error(err))
	}
}
