// Package queue provides the durable task queue the render pipeline runs on.
// Tasks carry deterministic IDs so a retried or re-enqueued unit of work
// deduplicates instead of fanning out.
package queue

import (
	"context"
	"encoding/json"
	"time"
)

// Task is one unit of queued work. ID is deterministic for the work unit
// (e.g. "<job>-page-3"), so enqueueing the same unit twice while it is
// pending collapses to a single delivery.
type Task struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}

// NewTask creates a task with a JSON-encoded payload
func NewTask(id, taskType string, payload interface{}) (*Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Task{
		ID:         id,
		Type:       taskType,
		Payload:    data,
		EnqueuedAt: time.Now(),
	}, nil
}

// DecodePayload unmarshals the task payload into v
func (t *Task) DecodePayload(v interface{}) error {
	return json.Unmarshal(t.Payload, v)
}

// Queue is the durable queue contract. Delivery is at-least-once: handlers
// must be idempotent, which the guarded database updates downstream provide.
type Queue interface {
	// Enqueue adds a task to the pending queue. A task whose ID is already
	// pending is silently dropped.
	Enqueue(ctx context.Context, task *Task) error

	// Dequeue pops the next pending task, blocking up to timeout.
	// Returns (nil, nil) when the queue stayed empty.
	Dequeue(ctx context.Context, timeout time.Duration) (*Task, error)

	// RetryLater schedules the task to re-enter the pending queue after delay
	RetryLater(ctx context.Context, task *Task, delay time.Duration) error

	// PromoteDue moves delayed tasks whose time has come back to pending.
	// Returns the number promoted.
	PromoteDue(ctx context.Context, now time.Time) (int, error)

	// Bury moves a task that exhausted its attempts to the dead set
	Bury(ctx context.Context, task *Task, reason string) error
}

// Backoff computes the exponential retry delay for the given attempt,
// starting at initial and capped at max.
func Backoff(attempt int, initial, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= max {
			return max
		}
	}
	if delay > max {
		return max
	}
	return delay
}
