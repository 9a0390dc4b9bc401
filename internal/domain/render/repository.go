package render

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// Repository provides access to render jobs. Everything that can race across
// worker processes (the page counter, the merge-trigger stage transition,
// the failure/recovery flips) is expressed as an atomic conditional update,
// never as read-modify-write.
type Repository interface {
	// FindByID finds a job by ID, artifacts included
	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// FindByIDForOwner finds a job by ID scoped to its owner
	FindByIDForOwner(ctx context.Context, ownerID, id uuid.UUID) (*Job, error)

	// FindAllForOwner lists jobs belonging to an owner
	FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]Job, error)

	// CountForOwner counts jobs belonging to an owner
	CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error)

	// Save inserts a new job or updates non-contended fields
	Save(ctx context.Context, job *Job) error

	// AppendArtifact records a page artifact and bumps the completed-pages
	// counter in one transaction. The counter update is
	// `completed_pages = completed_pages + 1`, an atomic counter increment,
	// so concurrent workers never race-lose a completion. Returns the
	// counter value after the increment.
	AppendArtifact(ctx context.Context, artifact *PageArtifact) (completedPages int, err error)

	// TryBeginMerge attempts the single conditional RENDERING → MERGING
	// transition:
	//
	//	UPDATE ... SET stage = 'MERGING', status = 'PROCESSING'
	//	WHERE id = ? AND output_document_id IS NULL
	//	  AND stage IN ('PENDING', 'RENDERING')
	//
	// Exactly one of N racing callers observes rows-affected = 1 and returns
	// true; everyone else gets false. The winner enqueues the merge task.
	TryBeginMerge(ctx context.Context, jobID uuid.UUID) (bool, error)

	// CompleteMerge publishes the output document and marks the job
	// COMPLETED/COMPLETED, guarded by `output_document_id IS NULL` so a
	// duplicate merge delivery cannot set it twice.
	CompleteMerge(ctx context.Context, jobID, outputDocumentID uuid.UUID) error

	// MarkFailed flips the job to FAILED/FAILED with an error message unless
	// the output document is already set.
	MarkFailed(ctx context.Context, jobID uuid.UUID, reason string) error

	// ReopenFailed performs the reconciler's FAILED → RENDERING recovery,
	// guarded on the current failed state and a null output document.
	// Returns false when the job was not in a reopenable state.
	ReopenFailed(ctx context.Context, jobID uuid.UUID) (bool, error)

	// TouchHealAttempt records the reconciler's heal timestamp for throttling
	TouchHealAttempt(ctx context.Context, jobID uuid.UUID, at time.Time) error
}
