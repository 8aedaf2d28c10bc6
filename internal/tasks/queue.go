// Package tasks provides the in-process background task queue used by the
// content pipeline and the reindex scheduler: named handlers, a buffered
// channel, and a bounded worker pool. Delivery is best-effort,
// at-least-once within the process.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// maxAttempts bounds redelivery of a failing task
const maxAttempts = 3

// Handler processes a single task. Returning an error requeues the task
// until maxAttempts is reached.
type Handler func(ctx context.Context, args map[string]string) error

// ErrClosed is returned by Enqueue after Close
var ErrClosed = errors.New("task queue closed")

// ErrFull is returned by Enqueue when the buffer is at capacity. The
// queue is bounded and Enqueue never blocks; callers treat a full queue
// like any other enqueue failure.
var ErrFull = errors.New("task queue full")

type job struct {
	id      string
	task    string
	args    map[string]string
	attempt int
}

// Queue is the in-process task queue
type Queue struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	jobs     chan job
	closed   bool
	group    *errgroup.Group
	workers  int
	logger   *slog.Logger
}

// New creates a queue with the given worker pool size and channel buffer
func New(workers, buffer int, logger *slog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	if buffer <= 0 {
		buffer = 64
	}
	return &Queue{
		handlers: make(map[string]Handler),
		jobs:     make(chan job, buffer),
		workers:  workers,
		logger:   logger,
	}
}

// Register associates a handler with a task name. Must be called before
// Start; a duplicate registration replaces the previous handler.
func (q *Queue) Register(task string, h Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[task] = h
}

// Enqueue schedules a task and returns its id. Unknown task names fail
// immediately rather than at dispatch.
//
// The send happens under the same lock as the closed check. Close takes
// the write lock before closing the channel, so a send can never race a
// concurrent Close onto a closed channel.
func (q *Queue) Enqueue(ctx context.Context, task string, args map[string]string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return "", ErrClosed
	}
	if _, known := q.handlers[task]; !known {
		return "", fmt.Errorf("unknown task %q", task)
	}

	j := job{id: uuid.NewString(), task: task, args: args, attempt: 1}

	select {
	case q.jobs <- j:
		return j.id, nil
	default:
		return "", ErrFull
	}
}

// Start launches the worker pool. Workers run until the context is
// cancelled and the channel drained via Close.
func (q *Queue) Start(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	q.group = g

	for i := 0; i < q.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case j, ok := <-q.jobs:
					if !ok {
						return nil
					}
					q.run(gctx, j)
				case <-gctx.Done():
					return gctx.Err()
				}
			}
		})
	}
}

// Close stops accepting work and waits for in-flight tasks to finish
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	close(q.jobs)
	if q.group == nil {
		return nil
	}
	if err := q.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// run executes one job with panic recovery and bounded retry
func (q *Queue) run(ctx context.Context, j job) {
	q.mu.RLock()
	h := q.handlers[j.task]
	q.mu.RUnlock()

	defer func() {
		if rec := recover(); rec != nil {
			q.logger.Error("task panicked",
				"task", j.task,
				"task_id", j.id,
				"panic", rec,
			)
		}
	}()

	err := h(ctx, j.args)
	if err == nil {
		q.logger.Debug("task done", "task", j.task, "task_id", j.id, "attempt", j.attempt)
		return
	}

	if j.attempt >= maxAttempts {
		q.logger.Error("task failed, giving up",
			"task", j.task,
			"task_id", j.id,
			"attempt", j.attempt,
			"error", err,
		)
		return
	}

	q.logger.Warn("task failed, requeueing",
		"task", j.task,
		"task_id", j.id,
		"attempt", j.attempt,
		"error", err,
	)

	j.attempt++
	q.requeue(j)
}

// requeue puts a failed job back on the channel. Same locking rule as
// Enqueue: closed check and send share the read lock so the send cannot
// race Close.
func (q *Queue) requeue(j job) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.logger.Error("task dropped, queue closed", "task", j.task, "task_id", j.id)
		return
	}

	select {
	case q.jobs <- j:
	default:
		// Queue full: drop rather than block a worker
		q.logger.Error("task dropped, queue full", "task", j.task, "task_id", j.id)
	}
}
