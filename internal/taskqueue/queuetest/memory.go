// Package queuetest provides an in-memory taskqueue.Queue for tests.
package queuetest

import (
	"context"
	"sync"
	"time"

	"github.com/grabngo/loaner/internal/taskqueue"
)

type scheduled struct {
	task *taskqueue.Task
	at   time.Time
}

// Memory is a goroutine-safe queue held in process memory
type Memory struct {
	mu      sync.Mutex
	pending []scheduled
	dead    []*taskqueue.Task
	acked   []*taskqueue.Task
	Now     func() time.Time
	// Err, when set, is returned by Enqueue and EnqueueAt
	Err error
}

// New returns an empty queue
func New() *Memory {
	return &Memory{Now: time.Now}
}

func (m *Memory) Enqueue(ctx context.Context, t *taskqueue.Task) error {
	return m.EnqueueAt(ctx, t, time.Time{})
}

func (m *Memory) EnqueueAt(_ context.Context, t *taskqueue.Task, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.pending = append(m.pending, scheduled{task: t, at: at})
	return nil
}

// Dequeue returns the first task that is due without blocking
func (m *Memory) Dequeue(_ context.Context, _ time.Duration) (*taskqueue.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.Now()
	for i, s := range m.pending {
		if !s.at.After(now) {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			return s.task, nil
		}
	}
	return nil, nil
}

func (m *Memory) Ack(_ context.Context, t *taskqueue.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, t)
	return nil
}

func (m *Memory) Retry(ctx context.Context, t *taskqueue.Task, at time.Time) error {
	t.Attempt++
	return m.EnqueueAt(ctx, t, at)
}

func (m *Memory) Bury(_ context.Context, t *taskqueue.Task, reason error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if reason != nil {
		t.LastError = reason.Error()
	}
	m.dead = append(m.dead, t)
	return nil
}

// Pending returns queued tasks regardless of due time
func (m *Memory) Pending() []*taskqueue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*taskqueue.Task, len(m.pending))
	for i, s := range m.pending {
		out[i] = s.task
	}
	return out
}

// DueAt returns the scheduled time of the pending task with id
func (m *Memory) DueAt(id string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.pending {
		if s.task.ID == id {
			return s.at, true
		}
	}
	return time.Time{}, false
}

func (m *Memory) Dead() []*taskqueue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*taskqueue.Task(nil), m.dead...)
}

func (m *Memory) Acked() []*taskqueue.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*taskqueue.Task(nil), m.acked...)
}

// Drain runs h over every due task until none remain, returning how many ran.
// Failed tasks are buried so the loop terminates.
func (m *Memory) Drain(ctx context.Context, h taskqueue.Handler) (int, error) {
	n := 0
	for {
		t, _ := m.Dequeue(ctx, 0)
		if t == nil {
			return n, nil
		}
		n++
		if err := h.Handle(ctx, t); err != nil {
			_ = m.Bury(ctx, t, err)
			return n, err
		}
		_ = m.Ack(ctx, t)
	}
}

var _ taskqueue.Queue = (*Memory)(nil)
