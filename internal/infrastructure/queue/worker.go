package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/printpass/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Handler processes one task. A returned error schedules a retry with
// exponential backoff until the attempt budget is spent.
type Handler func(ctx context.Context, task *Task) error

// DeadLetterFunc is invoked when a task exhausts its attempts and is buried
type DeadLetterFunc func(ctx context.Context, task *Task, err error)

// Worker consumes the queue with a pool of goroutines plus one promoter loop
// that moves due retries back to pending.
type Worker struct {
	queue    Queue
	cfg      config.QueueConfig
	logger   *zap.Logger
	handlers map[string]Handler
	onDead   DeadLetterFunc
	wg       sync.WaitGroup
}

// NewWorker creates a Worker for the given queue
func NewWorker(q Queue, cfg config.QueueConfig, logger *zap.Logger) *Worker {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		queue:    q,
		cfg:      cfg,
		logger:   logger,
		handlers: make(map[string]Handler),
	}
}

// Register binds a handler to a task type. Must be called before Start.
func (w *Worker) Register(taskType string, handler Handler) {
	w.handlers[taskType] = handler
}

// OnDeadTask sets the callback invoked when a task is buried
func (w *Worker) OnDeadTask(fn DeadLetterFunc) {
	w.onDead = fn
}

// Start launches the consumer pool and the retry promoter. It returns
// immediately; cancel the context and call Wait to drain.
func (w *Worker) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.promoteLoop(ctx)

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.consumeLoop(ctx, i)
	}

	w.logger.Info("queue worker started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("max_attempts", w.cfg.MaxAttempts))
}

// Wait blocks until every worker goroutine has exited
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) promoteLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := w.queue.PromoteDue(ctx, time.Now())
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Warn("failed to promote delayed tasks", zap.Error(err))
				continue
			}
			if n > 0 {
				w.logger.Debug("promoted delayed tasks", zap.Int("count", n))
			}
		}
	}
}

func (w *Worker) consumeLoop(ctx context.Context, id int) {
	defer w.wg.Done()

	for {
		if ctx.Err() != nil {
			return
		}

		task, err := w.queue.Dequeue(ctx, w.cfg.PollInterval)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Warn("dequeue failed", zap.Int("consumer", id), zap.Error(err))
			time.Sleep(w.cfg.PollInterval)
			continue
		}
		if task == nil {
			continue
		}

		w.process(ctx, task)
	}
}

func (w *Worker) process(ctx context.Context, task *Task) {
	handler, ok := w.handlers[task.Type]
	if !ok {
		err := fmt.Errorf("no handler registered for task type %q", task.Type)
		w.logger.Error("unroutable task", zap.String("task_id", task.ID), zap.Error(err))
		w.bury(ctx, task, err)
		return
	}

	start := time.Now()
	err := w.runHandler(ctx, handler, task)
	if err == nil {
		w.logger.Debug("task processed",
			zap.String("task_id", task.ID),
			zap.String("type", task.Type),
			zap.Duration("took", time.Since(start)))
		return
	}
	if ctx.Err() != nil {
		// Shutdown interrupted the handler; put the task back for the
		// next process rather than charging an attempt.
		if reqErr := w.queue.RetryLater(context.Background(), task, 0); reqErr != nil {
			w.logger.Error("failed to requeue task on shutdown",
				zap.String("task_id", task.ID), zap.Error(reqErr))
		}
		return
	}

	task.Attempt++
	if task.Attempt >= w.cfg.MaxAttempts {
		w.logger.Error("task exhausted attempts",
			zap.String("task_id", task.ID),
			zap.String("type", task.Type),
			zap.Int("attempts", task.Attempt),
			zap.Error(err))
		w.bury(ctx, task, err)
		return
	}

	delay := Backoff(task.Attempt, w.cfg.InitialBackoff, w.cfg.MaxBackoff)
	w.logger.Warn("task failed, scheduling retry",
		zap.String("task_id", task.ID),
		zap.String("type", task.Type),
		zap.Int("attempt", task.Attempt),
		zap.Duration("delay", delay),
		zap.Error(err))

	if retryErr := w.queue.RetryLater(ctx, task, delay); retryErr != nil {
		w.logger.Error("failed to schedule retry",
			zap.String("task_id", task.ID), zap.Error(retryErr))
	}
}

// runHandler invokes the handler, converting a panic into an ordinary error
// so a panicking rasterizer or PDF library costs one attempt, not the
// whole worker process.
func (w *Worker) runHandler(ctx context.Context, handler Handler, task *Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task handler panicked: %v", r)
			w.logger.Error("task handler panicked",
				zap.String("task_id", task.ID),
				zap.String("type", task.Type),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	return handler(ctx, task)
}

func (w *Worker) bury(ctx context.Context, task *Task, cause error) {
	if err := w.queue.Bury(ctx, task, cause.Error()); err != nil {
		w.logger.Error("failed to bury task", zap.String("task_id", task.ID), zap.Error(err))
	}
	if w.onDead != nil {
		w.onDead(ctx, task, cause)
	}
}
