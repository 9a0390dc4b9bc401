package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

// Ensure RedisQueue implements Queue
var _ Queue = (*RedisQueue)(nil)

// dedupeTTL bounds how long an unclaimed task ID suppresses re-enqueues.
// Dequeue clears the marker, so the reconciler can always re-enqueue work
// that a dead worker picked up and never finished.
const dedupeTTL = 30 * time.Minute

// RedisQueue is a Redis-backed task queue. Layout:
//
//	<prefix>:queue:pending  - LIST of pending task JSON, consumed with BRPOP
//	<prefix>:queue:delayed  - ZSET of retry task JSON scored by ready time
//	<prefix>:queue:dead     - LIST of tasks that exhausted their attempts
//	<prefix>:queue:seen:<id> - SETNX dedupe marker per pending task ID
type RedisQueue struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisQueue creates a RedisQueue and verifies the connection
func NewRedisQueue(cfg *config.RedisConfig, keyPrefix string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisQueueWithClient(client, keyPrefix), nil
}

// NewRedisQueueWithClient creates a RedisQueue with an existing client.
// Useful for testing or when sharing a client across components.
func NewRedisQueueWithClient(client *redis.Client, keyPrefix string) *RedisQueue {
	if keyPrefix == "" {
		keyPrefix = "printpass"
	}
	return &RedisQueue{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (q *RedisQueue) pendingKey() string { return q.keyPrefix + ":queue:pending" }
func (q *RedisQueue) delayedKey() string { return q.keyPrefix + ":queue:delayed" }
func (q *RedisQueue) deadKey() string    { return q.keyPrefix + ":queue:dead" }
func (q *RedisQueue) seenKey(id string) string {
	return q.keyPrefix + ":queue:seen:" + id
}

// Enqueue adds a task to the pending queue. The SETNX marker makes the
// enqueue idempotent per task ID while the task sits unclaimed.
func (q *RedisQueue) Enqueue(ctx context.Context, task *Task) error {
	fresh, err := q.client.SetNX(ctx, q.seenKey(task.ID), "1", dedupeTTL).Result()
	if err != nil {
		return fmt.Errorf("failed to set dedupe marker for task %s: %w", task.ID, err)
	}
	if !fresh {
		return nil
	}

	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task %s: %w", task.ID, err)
	}
	if err := q.client.LPush(ctx, q.pendingKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue task %s: %w", task.ID, err)
	}
	return nil
}

// Dequeue pops the next pending task, blocking up to timeout
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	res, err := q.client.BRPop(ctx, timeout, q.pendingKey()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply length %d", len(res))
	}

	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to decode dequeued task: %w", err)
	}

	// The task is now in flight; clear the marker so a reconciler
	// re-enqueue is possible if this worker dies mid-task.
	if err := q.client.Del(ctx, q.seenKey(task.ID)).Err(); err != nil {
		return nil, fmt.Errorf("failed to clear dedupe marker for task %s: %w", task.ID, err)
	}
	return &task, nil
}

// RetryLater schedules the task to re-enter the pending queue after delay
func (q *RedisQueue) RetryLater(ctx context.Context, task *Task, delay time.Duration) error {
	data, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode retry task %s: %w", task.ID, err)
	}

	readyAt := time.Now().Add(delay)
	err = q.client.ZAdd(ctx, q.delayedKey(), redis.Z{
		Score:  float64(readyAt.UnixMilli()),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to schedule retry for task %s: %w", task.ID, err)
	}
	return nil
}

// PromoteDue moves delayed tasks whose time has come back to pending.
// The ZREM return value arbitrates between racing promoters: whoever
// removes the member owns the re-enqueue.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to scan delayed tasks: %w", err)
	}

	promoted := 0
	for _, member := range members {
		removed, err := q.client.ZRem(ctx, q.delayedKey(), member).Result()
		if err != nil {
			return promoted, fmt.Errorf("failed to claim delayed task: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.LPush(ctx, q.pendingKey(), member).Err(); err != nil {
			return promoted, fmt.Errorf("failed to promote delayed task: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Bury moves a task that exhausted its attempts to the dead list
func (q *RedisQueue) Bury(ctx context.Context, task *Task, reason string) error {
	entry := struct {
		Task     *Task     `json:"task"`
		Reason   string    `json:"reason"`
		BuriedAt time.Time `json:"buried_at"`
	}{Task: task, Reason: reason, BuriedAt: time.Now()}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode dead task %s: %w", task.ID, err)
	}
	if err := q.client.LPush(ctx, q.deadKey(), data).Err(); err != nil {
		return fmt.Errorf("failed to bury task %s: %w", task.ID, err)
	}
	return nil
}

// Close closes the underlying Redis client
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
