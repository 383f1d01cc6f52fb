// Package taskqueue is a persistent at-least-once task queue with a worker pool.
package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ProcessAction is the queue that carries asynchronous actions
const ProcessAction = "process-action"

// Task is one unit of queued work. Name is the tag that selects the handler.
type Task struct {
	ID         string          `json:"id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`

	// raw is the exact serialized form while the task is in flight
	raw string
}

// NewTask builds a task carrying payload encoded as JSON
func NewTask(queue, name string, payload interface{}) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:         uuid.NewString(),
		Queue:      queue,
		Name:       name,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}, nil
}

// Queue is a persistent task queue
type Queue interface {
	Enqueue(ctx context.Context, t *Task) error
	EnqueueAt(ctx context.Context, t *Task, at time.Time) error
	// Dequeue blocks up to wait for a task; it returns nil, nil on timeout
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
	Ack(ctx context.Context, t *Task) error
	Retry(ctx context.Context, t *Task, at time.Time) error
	Bury(ctx context.Context, t *Task, reason error) error
}

// Handler processes dequeued tasks
type Handler interface {
	Handle(ctx context.Context, t *Task) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, t *Task) error

func (f HandlerFunc) Handle(ctx context.Context, t *Task) error { return f(ctx, t) }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err so the worker buries the task instead of retrying it
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
