package taskqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue stores tasks in Redis lists.
//
//	queue:<name>:pending     LPUSH on enqueue, BLMOVE to processing on dequeue
//	queue:<name>:processing  in-flight tasks, removed on ack
//	queue:<name>:leases      sorted set of in-flight tasks scored by lease expiry
//	queue:<name>:delayed     sorted set scored by due time in unix millis
//	queue:<name>:dead        tasks that failed permanently
//
// A task whose lease expires before it is acked, retried or buried goes back
// to pending with its attempt counted.
type RedisQueue struct {
	rdb        *redis.Client
	name       string
	visibility time.Duration
}

// DefaultVisibility is how long a dequeued task stays leased to its worker
const DefaultVisibility = 5 * time.Minute

// NewRedisQueue creates a queue named name
func NewRedisQueue(rdb *redis.Client, name string) *RedisQueue {
	return &RedisQueue{rdb: rdb, name: name, visibility: DefaultVisibility}
}

// WithVisibilityTimeout sets how long a dequeued task may go unacknowledged
// before it is handed out again
func (q *RedisQueue) WithVisibilityTimeout(d time.Duration) *RedisQueue {
	if d > 0 {
		q.visibility = d
	}
	return q
}

func (q *RedisQueue) key(part string) string {
	return "queue:" + q.name + ":" + part
}

// Enqueue makes t available immediately
func (q *RedisQueue) Enqueue(ctx context.Context, t *Task) error {
	t.Queue = q.name
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key("pending"), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", t.ID, err)
	}
	return nil
}

// EnqueueAt makes t available at the given time
func (q *RedisQueue) EnqueueAt(ctx context.Context, t *Task, at time.Time) error {
	t.Queue = q.name
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	z := redis.Z{Score: float64(at.UnixMilli()), Member: string(data)}
	if err := q.rdb.ZAdd(ctx, q.key("delayed"), z).Err(); err != nil {
		return fmt.Errorf("failed to schedule task %s: %w", t.ID, err)
	}
	return nil
}

// promoteDue moves delayed tasks whose time has come, and in-flight tasks
// whose lease ran out, onto the pending list.
// ZREM decides the winner when several workers race for the same member.
func (q *RedisQueue) promoteDue(ctx context.Context) error {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	if err := q.reapExpired(ctx, now); err != nil {
		return err
	}

	due, err := q.rdb.ZRangeByScore(ctx, q.key("delayed"), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, member := range due {
		removed, err := q.rdb.ZRem(ctx, q.key("delayed"), member).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		if err := q.rdb.LPush(ctx, q.key("pending"), member).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (q *RedisQueue) reapExpired(ctx context.Context, now string) error {
	expired, err := q.rdb.ZRangeByScore(ctx, q.key("leases"), &redis.ZRangeBy{Min: "-inf", Max: now}).Result()
	if err != nil {
		return err
	}
	for _, raw := range expired {
		removed, err := q.rdb.ZRem(ctx, q.key("leases"), raw).Result()
		if err != nil {
			return err
		}
		if removed == 0 {
			continue
		}
		held, err := q.rdb.LRem(ctx, q.key("processing"), 1, raw).Result()
		if err != nil {
			return err
		}
		// acked between the two reads
		if held == 0 {
			continue
		}

		var t Task
		if err := json.Unmarshal([]byte(raw), &t); err != nil {
			q.rdb.LPush(ctx, q.key("dead"), raw)
			continue
		}
		t.Attempt++
		t.LastError = "lease expired"
		data, err := json.Marshal(&t)
		if err != nil {
			return err
		}
		if err := q.rdb.LPush(ctx, q.key("pending"), data).Err(); err != nil {
			return err
		}
		log.Printf("⚠️  Task %s (%s) lease expired, requeued", t.ID, t.Name)
	}
	return nil
}

// release drops t from processing and ends its lease
func (q *RedisQueue) release(ctx context.Context, t *Task) error {
	pipe := q.rdb.TxPipeline()
	pipe.LRem(ctx, q.key("processing"), 1, t.raw)
	pipe.ZRem(ctx, q.key("leases"), t.raw)
	_, err := pipe.Exec(ctx)
	return err
}

// Dequeue moves the oldest pending task to processing and returns it
func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (*Task, error) {
	if err := q.promoteDue(ctx); err != nil {
		return nil, fmt.Errorf("failed to promote delayed tasks: %w", err)
	}

	raw, err := q.rdb.BLMove(ctx, q.key("pending"), q.key("processing"), "RIGHT", "LEFT", wait).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var t Task
	if err := json.Unmarshal([]byte(raw), &t); err != nil {
		// Unreadable entries go straight to the dead list
		q.rdb.LRem(ctx, q.key("processing"), 1, raw)
		q.rdb.LPush(ctx, q.key("dead"), raw)
		return nil, fmt.Errorf("corrupt task payload: %w", err)
	}
	t.raw = raw

	lease := redis.Z{Score: float64(time.Now().Add(q.visibility).UnixMilli()), Member: raw}
	if err := q.rdb.ZAdd(ctx, q.key("leases"), lease).Err(); err != nil {
		return nil, fmt.Errorf("failed to lease task %s: %w", t.ID, err)
	}
	return &t, nil
}

// Ack removes a finished task from processing
func (q *RedisQueue) Ack(ctx context.Context, t *Task) error {
	return q.release(ctx, t)
}

// Retry reschedules t for another attempt at the given time
func (q *RedisQueue) Retry(ctx context.Context, t *Task, at time.Time) error {
	if err := q.release(ctx, t); err != nil {
		return err
	}
	t.Attempt++
	return q.EnqueueAt(ctx, t, at)
}

// Bury moves t to the dead list
func (q *RedisQueue) Bury(ctx context.Context, t *Task, reason error) error {
	if err := q.release(ctx, t); err != nil {
		return err
	}
	if reason != nil {
		t.LastError = reason.Error()
	}
	data, err := json.Marshal(t)
	if err != nil {
		return err
	}
	return q.rdb.LPush(ctx, q.key("dead"), data).Err()
}

// Stats reports list sizes
type Stats struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Delayed    int64 `json:"delayed"`
	Dead       int64 `json:"dead"`
}

// Stats returns the current queue sizes
func (q *RedisQueue) Stats(ctx context.Context) (Stats, error) {
	pipe := q.rdb.Pipeline()
	pending := pipe.LLen(ctx, q.key("pending"))
	processing := pipe.LLen(ctx, q.key("processing"))
	delayed := pipe.ZCard(ctx, q.key("delayed"))
	dead := pipe.LLen(ctx, q.key("dead"))
	if _, err := pipe.Exec(ctx); err != nil {
		return Stats{}, err
	}
	return Stats{
		Pending:    pending.Val(),
		Processing: processing.Val(),
		Delayed:    delayed.Val(),
		Dead:       dead.Val(),
	}, nil
}

var _ Queue = (*RedisQueue)(nil)
