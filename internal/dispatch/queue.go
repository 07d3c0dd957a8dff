package dispatch

import (
	"context"
	"errors"
)

var (
	// ErrQueueFull is returned by a bounded queue that cannot accept more work.
	ErrQueueFull = errors.New("queue full")
	// ErrQueueClosed is returned when enqueueing after Close.
	ErrQueueClosed = errors.New("queue closed")
)

// Queue accepts background indexing tasks.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	Close() error
}
