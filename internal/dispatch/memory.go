package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryQueue runs tasks on in-process worker goroutines fed by a bounded channel.
// Queued tasks are lost if the process exits.
type MemoryQueue struct {
	worker *Worker
	policy RetryPolicy
	logger *zap.Logger
	tasks  chan Task
	stop   chan struct{}
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewMemoryQueue starts workers goroutines (at least one) consuming up to capacity
// queued tasks.
func NewMemoryQueue(w *Worker, policy RetryPolicy, workers, capacity int, logger *zap.Logger) *MemoryQueue {
	if workers <= 0 {
		workers = 1
	}
	if capacity <= 0 {
		capacity = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	q := &MemoryQueue{
		worker: w,
		policy: policy.normalize(),
		logger: logger,
		tasks:  make(chan Task, capacity),
		stop:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go q.run()
	}
	return q
}

// Enqueue adds task without blocking; ErrQueueFull when the buffer is exhausted.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *MemoryQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.process(task)
	}
}

func (q *MemoryQueue) process(task Task) {
	ctx := context.Background()
	for attempt := 1; ; attempt++ {
		final := q.policy.Final(attempt)
		if err := q.worker.Process(ctx, task, attempt, final); err == nil || final {
			return
		}
		timer := time.NewTimer(q.policy.Delay(attempt))
		select {
		case <-timer.C:
		case <-q.stop:
			timer.Stop()
			q.logger.Warn("shutdown before retry, task dropped",
				zap.String("ticket", task.TicketID), zap.String("id", task.DocumentID))
			return
		}
	}
}

// Close stops accepting tasks, interrupts pending retry waits and waits for queued and
// in-flight attempts to finish.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.tasks)
	close(q.stop)
	q.mu.Unlock()
	q.wg.Wait()
	return nil
}
