// Package pipeline implements the asynchronous render pipeline: job
// submission fans out one task per page, workers rasterize pages
// independently, and the last page to land triggers exactly one merge.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/queue"
	"github.com/printpass/backend/internal/infrastructure/rasterizer"
	"github.com/printpass/backend/internal/infrastructure/storage"
)

// Task types routed by the queue worker
const (
	TaskTypeRenderPage = "render:page"
	TaskTypeMergeJob   = "merge:job"
)

// PageTaskID returns the deterministic task ID for one page of a job, so a
// re-enqueued page task deduplicates against a still-pending one.
func PageTaskID(jobID uuid.UUID, pageIndex int) string {
	return fmt.Sprintf("%s-page-%d", jobID, pageIndex)
}

// MergeTaskID returns the deterministic task ID for a job's merge
func MergeTaskID(jobID uuid.UUID) string {
	return fmt.Sprintf("%s-merge", jobID)
}

// PageArtifactKey returns the storage key for one rasterized page
func PageArtifactKey(jobID uuid.UUID, pageIndex int) string {
	return fmt.Sprintf("jobs/%s/pages/%d.pdf", jobID, pageIndex)
}

// RenderService submits render jobs and processes page rasterization tasks
type RenderService struct {
	jobRepo    render.Repository
	queue      queue.Queue
	rasterizer rasterizer.PageRasterizer
	storage    storage.ObjectStorage
	reconciler *Reconciler
	logger     *zap.Logger
}

// NewRenderService creates a new RenderService. The reconciler is optional;
// without one, job reads skip the self-healing pass.
func NewRenderService(
	jobRepo render.Repository,
	q queue.Queue,
	pageRasterizer rasterizer.PageRasterizer,
	objectStorage storage.ObjectStorage,
	reconciler *Reconciler,
	logger *zap.Logger,
) *RenderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RenderService{
		jobRepo:    jobRepo,
		queue:      q,
		rasterizer: pageRasterizer,
		storage:    objectStorage,
		reconciler: reconciler,
		logger:     logger,
	}
}

// SubmitJob creates a render job and enqueues one task per page. Enqueue
// failures after the job row exists are logged, not returned: the stored
// layout is the source of truth and the reconciler re-enqueues lost pages.
func (s *RenderService) SubmitJob(ctx context.Context, ownerID uuid.UUID, req SubmitJobRequest) (*JobResponse, error) {
	job, err := render.NewJob(ownerID, req.Pages, req.AssignedQuota)
	if err != nil {
		return nil, err
	}
	if err := job.StartRendering(); err != nil {
		return nil, err
	}

	if err := s.jobRepo.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save render job: %w", err)
	}

	enqueued := 0
	for i := range job.LayoutPages {
		if err := s.enqueuePageTask(ctx, job.ID, i); err != nil {
			s.logger.Warn("failed to enqueue page task",
				zap.String("job_id", job.ID.String()),
				zap.Int("page_index", i),
				zap.Error(err))
			continue
		}
		enqueued++
	}

	s.logger.Info("render job submitted",
		zap.String("job_id", job.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.Int("total_pages", job.TotalPages),
		zap.Int("enqueued", enqueued))

	return toJobResponse(job), nil
}

// HandlePageTask rasterizes one page, stores the artifact, and bumps the
// completion counter. The worker that lands the final page wins the atomic
// stage transition and enqueues the merge.
func (s *RenderService) HandlePageTask(ctx context.Context, task *queue.Task) error {
	var payload PageTaskPayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("failed to decode page task payload: %w", err)
	}

	job, err := s.jobRepo.FindByID(ctx, payload.JobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("page task references unknown job, dropping",
				zap.String("job_id", payload.JobID.String()))
			return nil
		}
		return fmt.Errorf("failed to load render job: %w", err)
	}
	if job.IsResolved() {
		return nil
	}
	if payload.PageIndex < 0 || payload.PageIndex >= job.TotalPages {
		s.logger.Warn("page task index out of range, dropping",
			zap.String("job_id", job.ID.String()),
			zap.Int("page_index", payload.PageIndex))
		return nil
	}

	if hasArtifact(job, payload.PageIndex) {
		// A redelivered task for a page that already landed. Skip the
		// render but still run the merge trigger in case the original
		// delivery died between the counter update and the transition.
		return s.maybeTriggerMerge(ctx, job.ID, job.CompletedPages, job.TotalPages)
	}

	layout := job.LayoutPages[payload.PageIndex]
	result, err := s.rasterizer.RasterizePage(ctx, &layout)
	if err != nil {
		return fmt.Errorf("failed to rasterize page %d: %w", payload.PageIndex, err)
	}

	storageKey := PageArtifactKey(job.ID, payload.PageIndex)
	if err := s.storage.Upload(ctx, storageKey, result.PDFData, "application/pdf"); err != nil {
		return shared.NewUpstreamError("storage.put", err)
	}

	completedPages, err := s.jobRepo.AppendArtifact(ctx, &render.PageArtifact{
		JobID:      job.ID,
		PageIndex:  payload.PageIndex,
		StorageKey: storageKey,
	})
	if err != nil {
		return fmt.Errorf("failed to record page artifact: %w", err)
	}

	s.logger.Debug("page rasterized",
		zap.String("job_id", job.ID.String()),
		zap.Int("page_index", payload.PageIndex),
		zap.Int("completed_pages", completedPages),
		zap.Duration("render_duration", result.RenderDuration))

	return s.maybeTriggerMerge(ctx, job.ID, completedPages, job.TotalPages)
}

// GetJob returns a job scoped to its owner. Reads double as the pipeline's
// reconciliation point: a stalled job is healed before the projection is
// built, so the caller sees the post-heal state.
func (s *RenderService) GetJob(ctx context.Context, ownerID, jobID uuid.UUID) (*JobResponse, error) {
	job, err := s.jobRepo.FindByIDForOwner(ctx, ownerID, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NewDomainError("NOT_FOUND", "Render job not found")
		}
		return nil, fmt.Errorf("failed to find render job: %w", err)
	}

	if s.reconciler != nil {
		if healed, err := s.reconciler.MaybeHeal(ctx, job); err != nil {
			s.logger.Warn("reconciliation failed",
				zap.String("job_id", job.ID.String()),
				zap.Error(err))
		} else if healed {
			job, err = s.jobRepo.FindByIDForOwner(ctx, ownerID, jobID)
			if err != nil {
				return nil, fmt.Errorf("failed to reload healed job: %w", err)
			}
		}
	}

	return toJobResponse(job), nil
}

// ListJobs returns the owner's render jobs
func (s *RenderService) ListJobs(ctx context.Context, ownerID uuid.UUID, req ListJobsRequest) (*ListJobsResponse, error) {
	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Filters:  make(map[string]interface{}),
	}
	if req.Status != "" {
		filter.Filters["status"] = req.Status
	}

	jobs, err := s.jobRepo.FindAllForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list render jobs: %w", err)
	}

	total, err := s.jobRepo.CountForOwner(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count render jobs: %w", err)
	}

	items := make([]JobResponse, len(jobs))
	for i := range jobs {
		items[i] = *toJobResponse(&jobs[i])
	}

	return &ListJobsResponse{
		Items: items,
		Total: total,
		Page:  req.Page,
		Size:  req.PageSize,
	}, nil
}

// maybeTriggerMerge runs the single-winner RENDERING → MERGING transition
// once the page counter reaches the total. Losing the race is the normal
// outcome for all but one caller and is not an error.
func (s *RenderService) maybeTriggerMerge(ctx context.Context, jobID uuid.UUID, completedPages, totalPages int) error {
	if completedPages < totalPages {
		return nil
	}

	won, err := s.jobRepo.TryBeginMerge(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to begin merge: %w", err)
	}
	if !won {
		return nil
	}

	if err := s.enqueueMergeTask(ctx, jobID); err != nil {
		// The stage already flipped to MERGING; the reconciler re-enqueues
		// the merge for a stuck MERGING job, so losing the task here heals.
		s.logger.Error("failed to enqueue merge task",
			zap.String("job_id", jobID.String()),
			zap.Error(err))
		return nil
	}

	s.logger.Info("merge triggered",
		zap.String("job_id", jobID.String()),
		zap.Int("total_pages", totalPages))
	return nil
}

func (s *RenderService) enqueuePageTask(ctx context.Context, jobID uuid.UUID, pageIndex int) error {
	task, err := queue.NewTask(PageTaskID(jobID, pageIndex), TaskTypeRenderPage, PageTaskPayload{
		JobID:     jobID,
		PageIndex: pageIndex,
	})
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, task)
}

func (s *RenderService) enqueueMergeTask(ctx context.Context, jobID uuid.UUID) error {
	task, err := queue.NewTask(MergeTaskID(jobID), TaskTypeMergeJob, MergeTaskPayload{JobID: jobID})
	if err != nil {
		return err
	}
	return s.queue.Enqueue(ctx, task)
}

func hasArtifact(job *render.Job, pageIndex int) bool {
	for _, a := range job.PageArtifacts {
		if a.PageIndex == pageIndex {
			return true
		}
	}
	return false
}
