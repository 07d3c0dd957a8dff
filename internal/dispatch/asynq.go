package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// DefaultAsynqQueue is the asynq queue name used when none is configured.
const DefaultAsynqQueue = "indexing"

// AsynqQueue enqueues tasks on Redis through asynq.
type AsynqQueue struct {
	client *asynq.Client
	queue  string
	policy RetryPolicy
}

// NewAsynqQueue returns a queue publishing to the named asynq queue.
func NewAsynqQueue(redis asynq.RedisConnOpt, queue string, policy RetryPolicy) *AsynqQueue {
	if queue == "" {
		queue = DefaultAsynqQueue
	}
	return &AsynqQueue{client: asynq.NewClient(redis), queue: queue, policy: policy.normalize()}
}

// Enqueue publishes task with the retry budget of the policy. The ticket id is used as the
// asynq task id so a task is enqueued at most once per ticket.
func (q *AsynqQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := task.Marshal()
	if err != nil {
		return err
	}
	opts := []asynq.Option{
		asynq.Queue(q.queue),
		asynq.MaxRetry(q.policy.MaxAttempts - 1),
	}
	if task.TicketID != "" {
		opts = append(opts, asynq.TaskID(task.TicketID))
	}
	if _, err := q.client.EnqueueContext(ctx, asynq.NewTask(TypeIndexDocument, payload), opts...); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// AsynqServer consumes indexing tasks from Redis.
type AsynqServer struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// NewAsynqServer builds a server running w for each task on the named queue.
func NewAsynqServer(redis asynq.RedisConnOpt, queue string, concurrency int, policy RetryPolicy, w *Worker, logger *zap.Logger) *AsynqServer {
	if queue == "" {
		queue = DefaultAsynqQueue
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	policy = policy.normalize()
	srv := asynq.NewServer(redis, asynq.Config{
		Concurrency: concurrency,
		Queues:      map[string]int{queue: 1},
		RetryDelayFunc: func(n int, _ error, _ *asynq.Task) time.Duration {
			return policy.Delay(n + 1)
		},
		Logger:   logger.Sugar(),
		LogLevel: asynq.WarnLevel,
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeIndexDocument, HandleIndexTask(w))
	return &AsynqServer{server: srv, mux: mux}
}

// HandleIndexTask returns the asynq handler for indexing tasks. Undecodable payloads are not
// retried.
func HandleIndexTask(w *Worker) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		task, err := UnmarshalTask(t.Payload())
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		return w.Process(ctx, task, retried+1, retried >= maxRetry)
	}
}

// Start begins processing in background goroutines.
func (s *AsynqServer) Start() error {
	return s.server.Start(s.mux)
}

// Run processes tasks until the process receives SIGTERM or SIGINT.
func (s *AsynqServer) Run() error {
	return s.server.Run(s.mux)
}

// Shutdown waits for in-flight tasks and stops the server.
func (s *AsynqServer) Shutdown() {
	s.server.Shutdown()
}
