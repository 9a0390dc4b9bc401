package queue

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryQueue implements Queue
var _ Queue = (*MemoryQueue)(nil)

// MemoryQueue is an in-process Queue with the same dedupe and delayed-retry
// semantics as RedisQueue. Used by tests and single-process development.
type MemoryQueue struct {
	mu      sync.Mutex
	pending []*Task
	delayed []delayedTask
	dead    []DeadTask
	seen    map[string]bool
	wakeup  chan struct{}
}

type delayedTask struct {
	task    *Task
	readyAt time.Time
}

// DeadTask is a buried task together with the reason it was given up on
type DeadTask struct {
	Task   *Task
	Reason string
}

// NewMemoryQueue creates an empty MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		seen:   make(map[string]bool),
		wakeup: make(chan struct{}, 1),
	}
}

// Enqueue adds a task unless its ID is already pending
func (q *MemoryQueue) Enqueue(ctx context.Context, task *Task) error {
	q.mu.Lock()
	if q.seen[task.ID] {
		q.mu.Unlock()
		return nil
	}
	q.seen[task.ID] = true
	q.pending = append(q.pending, task)
	q.mu.Unlock()

	select {
	case q.wakeup <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue pops the next pending task, blocking up to timeout
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*Task, error) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		q.mu.Lock()
		if len(q.pending) > 0 {
			task := q.pending[0]
			q.pending = q.pending[1:]
			delete(q.seen, task.ID)
			q.mu.Unlock()
			return task, nil
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, nil
		case <-q.wakeup:
		}
	}
}

// RetryLater schedules the task to re-enter the pending queue after delay
func (q *MemoryQueue) RetryLater(ctx context.Context, task *Task, delay time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.delayed = append(q.delayed, delayedTask{task: task, readyAt: time.Now().Add(delay)})
	return nil
}

// PromoteDue moves delayed tasks whose time has come back to pending
func (q *MemoryQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	q.mu.Lock()
	var remaining []delayedTask
	var due []*Task
	for _, d := range q.delayed {
		if d.readyAt.After(now) {
			remaining = append(remaining, d)
		} else {
			due = append(due, d.task)
		}
	}
	q.delayed = remaining
	for _, task := range due {
		q.seen[task.ID] = true
		q.pending = append(q.pending, task)
	}
	q.mu.Unlock()

	if len(due) > 0 {
		select {
		case q.wakeup <- struct{}{}:
		default:
		}
	}
	return len(due), nil
}

// Bury moves a task to the dead set
func (q *MemoryQueue) Bury(ctx context.Context, task *Task, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, DeadTask{Task: task, Reason: reason})
	return nil
}

// PendingLen returns the number of pending tasks
func (q *MemoryQueue) PendingLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// DelayedLen returns the number of delayed tasks
func (q *MemoryQueue) DelayedLen() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.delayed)
}

// DeadTasks returns a snapshot of buried tasks
func (q *MemoryQueue) DeadTasks() []DeadTask {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]DeadTask, len(q.dead))
	copy(out, q.dead)
	return out
}
