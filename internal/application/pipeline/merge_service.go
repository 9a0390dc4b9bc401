package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/printpass/backend/internal/domain/document"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
	"github.com/printpass/backend/internal/infrastructure/composer"
	"github.com/printpass/backend/internal/infrastructure/queue"
	"github.com/printpass/backend/internal/infrastructure/storage"
)

// downloadConcurrency bounds parallel page downloads during a merge
const downloadConcurrency = 4

// OutputDocumentKey returns the storage key of a job's merged output
func OutputDocumentKey(jobID uuid.UUID) string {
	return fmt.Sprintf("jobs/%s/output.pdf", jobID)
}

// MergeService assembles a job's page artifacts into the output document and
// publishes the result: the document record, the completed job, and the
// ledger entry granting the assigned print quota.
type MergeService struct {
	jobRepo   render.Repository
	docRepo   document.Repository
	entryRepo ledger.EntryRepository
	storage   storage.ObjectStorage
	composer  composer.DocumentComposer
	logger    *zap.Logger
}

// NewMergeService creates a new MergeService
func NewMergeService(
	jobRepo render.Repository,
	docRepo document.Repository,
	entryRepo ledger.EntryRepository,
	objectStorage storage.ObjectStorage,
	documentComposer composer.DocumentComposer,
	logger *zap.Logger,
) *MergeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeService{
		jobRepo:   jobRepo,
		docRepo:   docRepo,
		entryRepo: entryRepo,
		storage:   objectStorage,
		composer:  documentComposer,
		logger:    logger,
	}
}

// HandleMergeTask merges the job's pages into one document. Safe under
// duplicate delivery: a resolved job is a no-op, and CompleteMerge is guarded
// so the output document is published at most once.
func (s *MergeService) HandleMergeTask(ctx context.Context, task *queue.Task) error {
	var payload MergeTaskPayload
	if err := task.DecodePayload(&payload); err != nil {
		return fmt.Errorf("failed to decode merge task payload: %w", err)
	}
	return s.Merge(ctx, payload.JobID)
}

// Merge performs the merge for the given job
func (s *MergeService) Merge(ctx context.Context, jobID uuid.UUID) error {
	job, err := s.jobRepo.FindByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("merge task references unknown job, dropping",
				zap.String("job_id", jobID.String()))
			return nil
		}
		return fmt.Errorf("failed to load render job: %w", err)
	}
	if job.IsResolved() {
		return nil
	}

	keys, err := job.ArtifactKeysInOrder()
	if err != nil {
		// A page artifact is missing even though the merge fired; the page
		// tasks are re-enqueued by the reconciler. Retrying the merge later
		// picks up the landed artifacts.
		return fmt.Errorf("job %s not ready to merge: %w", jobID, err)
	}

	pages, err := s.downloadPages(ctx, keys)
	if err != nil {
		return err
	}

	merged, err := s.composer.Merge(ctx, pages)
	if err != nil {
		return fmt.Errorf("failed to compose output document: %w", err)
	}

	outputKey := OutputDocumentKey(jobID)
	if err := s.storage.Upload(ctx, outputKey, merged, "application/pdf"); err != nil {
		return shared.NewUpstreamError("storage.put", err)
	}

	doc, err := document.New(outputKey, "application/pdf", document.KindGenerated)
	if err != nil {
		return err
	}
	if err := s.docRepo.Save(ctx, doc); err != nil {
		return fmt.Errorf("failed to save output document: %w", err)
	}

	// The ledger entry must exist before CompleteMerge resolves the job:
	// a resolved job is a redelivery no-op, so anything still missing at
	// that point would never be retried.
	entry, err := ledger.NewEntry(job.OwnerID, doc.ID, job.AssignedQuota)
	if err != nil {
		return err
	}
	if err := s.entryRepo.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}

	if err := s.jobRepo.CompleteMerge(ctx, jobID, doc.ID); err != nil {
		return fmt.Errorf("failed to complete merge: %w", err)
	}

	s.logger.Info("merge completed",
		zap.String("job_id", jobID.String()),
		zap.String("output_document_id", doc.ID.String()),
		zap.Int("pages", len(pages)),
		zap.Int("assigned_quota", job.AssignedQuota))
	return nil
}

// HandleDeadTask marks the job failed once a pipeline task has exhausted its
// retry budget. Wired as the worker's dead-letter callback.
func (s *MergeService) HandleDeadTask(ctx context.Context, task *queue.Task, cause error) {
	var ref struct {
		JobID uuid.UUID `json:"job_id"`
	}
	if err := task.DecodePayload(&ref); err != nil || ref.JobID == uuid.Nil {
		s.logger.Error("dead task has no job reference",
			zap.String("task_id", task.ID),
			zap.Error(cause))
		return
	}

	reason := fmt.Sprintf("%s: %s", task.Type, cause.Error())
	if err := s.jobRepo.MarkFailed(ctx, ref.JobID, reason); err != nil {
		s.logger.Error("failed to mark job failed",
			zap.String("job_id", ref.JobID.String()),
			zap.Error(err))
		return
	}

	s.logger.Warn("render job marked failed",
		zap.String("job_id", ref.JobID.String()),
		zap.String("task_id", task.ID),
		zap.Error(cause))
}

func (s *MergeService) downloadPages(ctx context.Context, keys []string) ([][]byte, error) {
	pages := make([][]byte, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadConcurrency)
	for i, key := range keys {
		g.Go(func() error {
			data, _, err := s.storage.Download(gctx, key)
			if err != nil {
				return shared.NewUpstreamError("storage.get", err)
			}
			pages[i] = data
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}
