package render

import (
	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeJob = "RenderJob"
)

// Event type constants
const (
	EventTypeJobCreated      = "RenderJobCreated"
	EventTypeJobStageChanged = "RenderJobStageChanged"
	EventTypeJobCompleted    = "RenderJobCompleted"
	EventTypeJobFailed       = "RenderJobFailed"
)

// JobCreatedEvent is published when a render job is submitted
type JobCreatedEvent struct {
	shared.BaseDomainEvent
	JobID      uuid.UUID `json:"job_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	TotalPages int       `json:"total_pages"`
}

// NewJobCreatedEvent creates a new JobCreatedEvent
func NewJobCreatedEvent(job *Job) *JobCreatedEvent {
	return &JobCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobCreated, job.ID, AggregateTypeJob),
		JobID:           job.ID,
		OwnerID:         job.OwnerID,
		TotalPages:      job.TotalPages,
	}
}

// JobStageChangedEvent is published when a job moves between pipeline stages
type JobStageChangedEvent struct {
	shared.BaseDomainEvent
	JobID    uuid.UUID `json:"job_id"`
	OldStage JobStage  `json:"old_stage"`
	NewStage JobStage  `json:"new_stage"`
}

// NewJobStageChangedEvent creates a new JobStageChangedEvent
func NewJobStageChangedEvent(job *Job, oldStage, newStage JobStage) *JobStageChangedEvent {
	return &JobStageChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobStageChanged, job.ID, AggregateTypeJob),
		JobID:           job.ID,
		OldStage:        oldStage,
		NewStage:        newStage,
	}
}

// JobCompletedEvent is published when the merge produces the output document
type JobCompletedEvent struct {
	shared.BaseDomainEvent
	JobID            uuid.UUID `json:"job_id"`
	OutputDocumentID uuid.UUID `json:"output_document_id"`
}

// NewJobCompletedEvent creates a new JobCompletedEvent
func NewJobCompletedEvent(jobID, outputDocumentID uuid.UUID) *JobCompletedEvent {
	return &JobCompletedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeJobCompleted, jobID, AggregateTypeJob),
		JobID:            jobID,
		OutputDocumentID: outputDocumentID,
	}
}

// JobFailedEvent is published when a job is marked failed
type JobFailedEvent struct {
	shared.BaseDomainEvent
	JobID  uuid.UUID `json:"job_id"`
	Reason string    `json:"reason"`
}

// NewJobFailedEvent creates a new JobFailedEvent
func NewJobFailedEvent(jobID uuid.UUID, reason string) *JobFailedEvent {
	return &JobFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJobFailed, jobID, AggregateTypeJob),
		JobID:           jobID,
		Reason:          reason,
	}
}
