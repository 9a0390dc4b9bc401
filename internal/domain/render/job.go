// Package render owns the RenderJob aggregate: the unit of work that turns a
// list of declarative page layouts into one merged output document.
package render

import (
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// PageArtifact references the rasterized bytes of one output page in object
// storage. Artifact rows are append-only; at-most-one-per-index is enforced
// by the reconciler, not by a write-time uniqueness constraint.
type PageArtifact struct {
	JobID      uuid.UUID
	PageIndex  int
	StorageKey string
	CreatedAt  time.Time
}

// Job is a render job: N page layouts rasterized independently and merged
// into one document. Progress counters (CompletedPages) and the stage
// transition to MERGING are mutated only through the repository's atomic
// conditional updates, because multiple workers race on them.
type Job struct {
	shared.OwnedAggregateRoot
	AssignedQuota    int
	LayoutPages      []PageLayout
	TotalPages       int
	CompletedPages   int
	PageArtifacts    []PageArtifact
	OutputDocumentID *uuid.UUID // set exactly once, by the merge coordinator
	Status           JobStatus
	Stage            JobStage
	ErrorMessage     string
	LastHealAt       *time.Time
}

// NewJob creates a render job for the given page layouts
func NewJob(ownerID uuid.UUID, layoutPages []PageLayout, assignedQuota int) (*Job, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if len(layoutPages) == 0 {
		return nil, shared.NewDomainError("EMPTY_LAYOUT", "Job requires at least one page layout")
	}
	if assignedQuota < 0 {
		return nil, shared.NewDomainError("INVALID_QUOTA", "Assigned quota cannot be negative")
	}

	pages := make([]PageLayout, len(layoutPages))
	for i, p := range layoutPages {
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, err
		}
		pages[i] = p
	}

	job := &Job{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		AssignedQuota:      assignedQuota,
		LayoutPages:        pages,
		TotalPages:         len(pages),
		Status:             JobStatusPending,
		Stage:              StagePending,
	}

	job.AddDomainEvent(NewJobCreatedEvent(job))
	return job, nil
}

// StartRendering marks the job as processing/rendering
func (j *Job) StartRendering() error {
	if !j.Stage.CanTransitionTo(StageRendering) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start rendering from stage: "+j.Stage.String())
	}

	j.Status = JobStatusProcessing
	j.Stage = StageRendering
	j.Touch()
	j.IncrementVersion()

	j.AddDomainEvent(NewJobStageChangedEvent(j, StagePending, StageRendering))
	return nil
}

// IsResolved returns true once the output document exists; downstream queries
// treat the job as done from this point.
func (j *Job) IsResolved() bool {
	return j.OutputDocumentID != nil
}

// IsCompleted returns true if the job finished the merge stage
func (j *Job) IsCompleted() bool {
	return j.Stage == StageCompleted
}

// IsFailed returns true if the job is marked failed
func (j *Job) IsFailed() bool {
	return j.Status == JobStatusFailed || j.Stage == StageFailed
}

// AllPagesRendered returns true once every page counter has landed
func (j *Job) AllPagesRendered() bool {
	return j.CompletedPages >= j.TotalPages
}

// MissingPageIndexes computes [0, totalPages) minus the distinct artifact
// indexes. An empty result means the job is either done or legitimately still
// rendering its last pages.
func (j *Job) MissingPageIndexes() []int {
	present := make(map[int]bool, len(j.PageArtifacts))
	for _, a := range j.PageArtifacts {
		present[a.PageIndex] = true
	}
	var missing []int
	for i := 0; i < j.TotalPages; i++ {
		if !present[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// ArtifactKeysInOrder returns one storage key per page index, in order.
// Duplicate artifact rows for an index collapse to the first one written.
// Returns shared.ErrIncomplete if any index has no artifact.
func (j *Job) ArtifactKeysInOrder() ([]string, error) {
	byIndex := make(map[int]string, len(j.PageArtifacts))
	for _, a := range j.PageArtifacts {
		if _, ok := byIndex[a.PageIndex]; !ok {
			byIndex[a.PageIndex] = a.StorageKey
		}
	}
	keys := make([]string, j.TotalPages)
	for i := 0; i < j.TotalPages; i++ {
		key, ok := byIndex[i]
		if !ok {
			return nil, shared.ErrIncomplete
		}
		keys[i] = key
	}
	return keys, nil
}

// HasIntactLayout reports whether the stored layout still covers every page,
// which is the precondition for the reconciler to reopen a failed job.
func (j *Job) HasIntactLayout() bool {
	return len(j.LayoutPages) == j.TotalPages && j.TotalPages > 0
}
