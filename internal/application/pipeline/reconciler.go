package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/infrastructure/config"
	"github.com/printpass/backend/internal/infrastructure/queue"
)

// Throttle defaults applied when the configuration leaves them unset
const (
	defaultMinSinceUpdate = 30 * time.Second
	defaultMinSinceHeal   = time.Minute
)

// Reconciler is the pipeline's pull-based self-healing pass. It runs when a
// job is read, never on a timer: a job nobody asks about is a job nobody
// needs healed. Healing only re-enqueues work derived from stored state;
// deterministic task IDs make re-enqueueing a lost task idempotent.
type Reconciler struct {
	jobRepo render.Repository
	queue   queue.Queue
	cfg     config.ReconcilerConfig
	logger  *zap.Logger
}

// NewReconciler creates a new Reconciler
func NewReconciler(jobRepo render.Repository, q queue.Queue, cfg config.ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if cfg.MinSinceUpdate <= 0 {
		cfg.MinSinceUpdate = defaultMinSinceUpdate
	}
	if cfg.MinSinceHeal <= 0 {
		cfg.MinSinceHeal = defaultMinSinceHeal
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		jobRepo: jobRepo,
		queue:   q,
		cfg:     cfg,
		logger:  logger,
	}
}

// MaybeHeal inspects the job and re-drives it if it is stuck. Returns true
// when a heal action was taken, meaning the caller should reload the job.
//
// A job qualifies for healing only when it has been quiet past the
// configured windows; active jobs with in-flight tasks are left alone so the
// reconciler never duplicates work that is merely slow.
func (r *Reconciler) MaybeHeal(ctx context.Context, job *render.Job) (bool, error) {
	if job.IsResolved() || job.Stage.IsTerminal() {
		return false, nil
	}

	now := time.Now()
	if now.Sub(job.UpdatedAt) < r.cfg.MinSinceUpdate {
		return false, nil
	}
	if job.LastHealAt != nil && now.Sub(*job.LastHealAt) < r.cfg.MinSinceHeal {
		return false, nil
	}

	if err := r.jobRepo.TouchHealAttempt(ctx, job.ID, now); err != nil {
		return false, fmt.Errorf("failed to record heal attempt: %w", err)
	}

	switch {
	case job.IsFailed():
		return r.healFailed(ctx, job)
	case job.Stage == render.StageMerging:
		return r.healStuckMerge(ctx, job)
	default:
		return r.healRendering(ctx, job)
	}
}

// healFailed reopens a failed job whose stored layout is intact and
// re-enqueues its missing pages. The guarded ReopenFailed update means two
// concurrent readers cannot both reopen the same job.
func (r *Reconciler) healFailed(ctx context.Context, job *render.Job) (bool, error) {
	if !job.HasIntactLayout() {
		r.logger.Warn("failed job has no intact layout, cannot recover",
			zap.String("job_id", job.ID.String()))
		return false, nil
	}

	reopened, err := r.jobRepo.ReopenFailed(ctx, job.ID)
	if err != nil {
		return false, fmt.Errorf("failed to reopen job: %w", err)
	}
	if !reopened {
		return false, nil
	}

	missing := job.MissingPageIndexes()
	r.enqueuePages(ctx, job, missing)

	if len(missing) == 0 {
		// Every artifact exists; only the merge was lost.
		return true, r.redriveMerge(ctx, job)
	}

	r.logger.Info("failed job reopened",
		zap.String("job_id", job.ID.String()),
		zap.Ints("missing_pages", missing))
	return true, nil
}

// healRendering re-enqueues page tasks for artifact gaps in a quiet
// RENDERING job, or re-drives the merge when every artifact already exists.
func (r *Reconciler) healRendering(ctx context.Context, job *render.Job) (bool, error) {
	missing := job.MissingPageIndexes()
	if len(missing) > 0 {
		r.enqueuePages(ctx, job, missing)
		r.logger.Info("re-enqueued missing pages",
			zap.String("job_id", job.ID.String()),
			zap.Ints("missing_pages", missing))
		return true, nil
	}

	return true, r.redriveMerge(ctx, job)
}

// healStuckMerge re-enqueues the merge task for a job stuck in MERGING,
// which happens when the transition winner died before enqueueing.
func (r *Reconciler) healStuckMerge(ctx context.Context, job *render.Job) (bool, error) {
	task, err := queue.NewTask(MergeTaskID(job.ID), TaskTypeMergeJob, MergeTaskPayload{JobID: job.ID})
	if err != nil {
		return false, err
	}
	if err := r.queue.Enqueue(ctx, task); err != nil {
		return false, fmt.Errorf("failed to re-enqueue merge task: %w", err)
	}

	r.logger.Info("re-enqueued merge task",
		zap.String("job_id", job.ID.String()))
	return true, nil
}

// redriveMerge runs the merge trigger for a job whose pages are all present
// but whose stage never advanced
func (r *Reconciler) redriveMerge(ctx context.Context, job *render.Job) error {
	won, err := r.jobRepo.TryBeginMerge(ctx, job.ID)
	if err != nil {
		return fmt.Errorf("failed to begin merge: %w", err)
	}
	if !won {
		return nil
	}
	_, err = r.healStuckMerge(ctx, job)
	return err
}

func (r *Reconciler) enqueuePages(ctx context.Context, job *render.Job, indexes []int) {
	for _, i := range indexes {
		task, err := queue.NewTask(PageTaskID(job.ID, i), TaskTypeRenderPage, PageTaskPayload{
			JobID:     job.ID,
			PageIndex: i,
		})
		if err == nil {
			err = r.queue.Enqueue(ctx, task)
		}
		if err != nil {
			r.logger.Warn("failed to re-enqueue page task",
				zap.String("job_id", job.ID.String()),
				zap.Int("page_index", i),
				zap.Error(err))
		}
	}
}
