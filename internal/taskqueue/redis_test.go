package taskqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisQueue(rdb, ProcessAction), mr
}

func TestRedisQueue_EnqueueDequeueAck(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	first, err := NewTask(ProcessAction, "send_welcome", map[string]string{"device": "1"})
	require.NoError(t, err)
	second, err := NewTask(ProcessAction, "send_reminder", map[string]string{"device": "2"})
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, first))
	require.NoError(t, q.Enqueue(ctx, second))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID, "tasks come out in insertion order")
	assert.JSONEq(t, `{"device":"1"}`, string(got.Payload))

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Pending)
	assert.Equal(t, int64(1), stats.Processing)

	require.NoError(t, q.Ack(ctx, got))
	stats, err = q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Processing)
}

func TestRedisQueue_DelayedTasksWaitForTheirTime(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	later, err := NewTask(ProcessAction, "guest_mode_expired", nil)
	require.NoError(t, err)
	require.NoError(t, q.EnqueueAt(ctx, later, time.Now().Add(time.Hour)))

	due, err := NewTask(ProcessAction, "send_reminder", nil)
	require.NoError(t, err)
	require.NoError(t, q.EnqueueAt(ctx, due, time.Now().Add(-time.Second)))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, due.ID, got.ID)

	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Delayed)
}

func TestRedisQueue_RetryAndBury(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	task, err := NewTask(ProcessAction, "lock_device", nil)
	require.NoError(t, err)
	require.NoError(t, q.Enqueue(ctx, task))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NoError(t, q.Retry(ctx, got, time.Now().Add(-time.Millisecond)))

	again, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Attempt)

	require.NoError(t, q.Bury(ctx, again, errors.New("directory unavailable")))
	stats, err := q.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.Processing)
	assert.Equal(t, int64(1), stats.Dead)
}

func TestRedisQueue_DequeueTimesOutEmpty(t *testing.T) {
	q, _ := newTestQueue(t)

	got, err := q.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisQueue_ExpiredLeaseIsRedelivered(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		finish    func(q *RedisQueue, got *Task) error
		redeliver bool
	}{
		{
			name:      "abandoned",
			finish:    func(q *RedisQueue, got *Task) error { return nil },
			redeliver: true,
		},
		{
			name:   "acked",
			finish: func(q *RedisQueue, got *Task) error { return q.Ack(ctx, got) },
		},
		{
			name: "buried",
			finish: func(q *RedisQueue, got *Task) error {
				return q.Bury(ctx, got, errors.New("bad payload"))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, _ := newTestQueue(t)
			q.WithVisibilityTimeout(time.Millisecond)

			task, err := NewTask(ProcessAction, "send_reminder", map[string]string{"device": "1"})
			require.NoError(t, err)
			require.NoError(t, q.Enqueue(ctx, task))

			got, err := q.Dequeue(ctx, time.Second)
			require.NoError(t, err)
			require.NotNil(t, got)
			require.NoError(t, tt.finish(q, got))
			time.Sleep(10 * time.Millisecond)

			again, err := q.Dequeue(ctx, time.Second)
			require.NoError(t, err)
			if !tt.redeliver {
				assert.Nil(t, again)
				return
			}
			require.NotNil(t, again)
			assert.Equal(t, task.ID, again.ID)
			assert.Equal(t, 1, again.Attempt)
			assert.Equal(t, "lease expired", again.LastError)

			stats, err := q.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), stats.Pending)
			assert.Equal(t, int64(1), stats.Processing)

			require.NoError(t, q.Ack(ctx, again))
			stats, err = q.Stats(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(0), stats.Processing)
		})
	}
}
