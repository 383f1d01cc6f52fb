package taskqueue

import (
	"context"
	"log"
	"time"

	"github.com/grabngo/loaner/internal/metrics"
)

// WorkerOptions tunes a worker pool
type WorkerOptions struct {
	Size        int
	Deadline    time.Duration
	MaxAttempts int
	Poll        time.Duration
	Backoff     func(attempt int) time.Duration
}

// DefaultBackoff doubles from 10s and caps at 10 minutes
func DefaultBackoff(attempt int) time.Duration {
	d := 10 * time.Second
	for i := 0; i < attempt && d < 10*time.Minute; i++ {
		d *= 2
	}
	if d > 10*time.Minute {
		d = 10 * time.Minute
	}
	return d
}

// Worker pulls tasks from a queue and hands them to a handler
type Worker struct {
	queue   Queue
	handler Handler
	opts    WorkerOptions
	now     func() time.Time
}

// NewWorker creates a worker pool; zero options take defaults
func NewWorker(q Queue, h Handler, opts WorkerOptions) *Worker {
	if opts.Size <= 0 {
		opts.Size = 4
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.Poll <= 0 {
		opts.Poll = 2 * time.Second
	}
	if opts.Backoff == nil {
		opts.Backoff = DefaultBackoff
	}
	return &Worker{queue: q, handler: h, opts: opts, now: time.Now}
}

// Start launches the worker goroutines
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.opts.Size; i++ {
		go w.worker(ctx, i)
	}
}

func (w *Worker) worker(ctx context.Context, id int) {
	log.Printf("Worker %d started", id)
	for {
		select {
		case <-ctx.Done():
			log.Printf("Worker %d shutting down", id)
			return
		default:
		}

		if _, err := w.RunOnce(ctx); err != nil {
			log.Printf("Worker %d: %v", id, err)
			select {
			case <-ctx.Done():
			case <-time.After(w.opts.Poll):
			}
		}
	}
}

// RunOnce processes at most one task, reporting whether one was found
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	t, err := w.queue.Dequeue(ctx, w.opts.Poll)
	if err != nil {
		return false, err
	}
	if t == nil {
		return false, nil
	}
	return true, w.process(ctx, t)
}

func (w *Worker) process(ctx context.Context, t *Task) error {
	taskCtx, cancel := context.WithTimeout(ctx, w.opts.Deadline)
	err := w.handler.Handle(taskCtx, t)
	cancel()

	switch {
	case err == nil:
		metrics.TasksProcessed.WithLabelValues(t.Name, "ok").Inc()
		return w.queue.Ack(ctx, t)

	case IsPermanent(err):
		log.Printf("❌ Task %s (%s) failed permanently: %v", t.ID, t.Name, err)
		metrics.TasksProcessed.WithLabelValues(t.Name, "failed").Inc()
		return w.queue.Bury(ctx, t, err)

	case t.Attempt+1 >= w.opts.MaxAttempts:
		log.Printf("❌ Task %s (%s) exhausted %d attempts: %v", t.ID, t.Name, w.opts.MaxAttempts, err)
		metrics.TasksProcessed.WithLabelValues(t.Name, "exhausted").Inc()
		return w.queue.Bury(ctx, t, err)

	default:
		delay := w.opts.Backoff(t.Attempt)
		log.Printf("⚠️  Task %s (%s) attempt %d failed, retrying in %s: %v", t.ID, t.Name, t.Attempt+1, delay, err)
		metrics.TasksProcessed.WithLabelValues(t.Name, "retry").Inc()
		return w.queue.Retry(ctx, t, w.now().Add(delay))
	}
}
