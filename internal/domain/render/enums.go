package render

// JobStatus represents the coarse status of a render job
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// IsValid checks if the JobStatus is a valid value
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStatus
func (s JobStatus) String() string {
	return string(s)
}

// statusTransitions is the statically enumerated status transition table.
// FAILED → PROCESSING is the reconciler's recovery path.
var statusTransitions = map[JobStatus][]JobStatus{
	JobStatusPending:    {JobStatusProcessing, JobStatusFailed},
	JobStatusProcessing: {JobStatusCompleted, JobStatusFailed},
	JobStatusFailed:     {JobStatusProcessing},
	JobStatusCompleted:  {},
}

// CanTransitionTo checks the transition table
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// JobStage represents the pipeline stage of a render job. Stages only advance
// forward except for the explicit FAILED → RENDERING recovery performed by
// the reconciler.
type JobStage string

const (
	StagePending   JobStage = "PENDING"
	StageRendering JobStage = "RENDERING"
	StageMerging   JobStage = "MERGING"
	StageCompleted JobStage = "COMPLETED"
	StageFailed    JobStage = "FAILED"
)

// IsValid checks if the JobStage is a valid value
func (s JobStage) IsValid() bool {
	switch s {
	case StagePending, StageRendering, StageMerging, StageCompleted, StageFailed:
		return true
	}
	return false
}

// String returns the string representation of JobStage
func (s JobStage) String() string {
	return string(s)
}

// IsTerminal returns true for COMPLETED; FAILED is recoverable by the
// reconciler and therefore not terminal.
func (s JobStage) IsTerminal() bool {
	return s == StageCompleted
}

// stageTransitions is the statically enumerated stage transition table
var stageTransitions = map[JobStage][]JobStage{
	StagePending:   {StageRendering, StageFailed},
	StageRendering: {StageMerging, StageFailed},
	StageMerging:   {StageCompleted, StageFailed},
	StageFailed:    {StageRendering},
	StageCompleted: {},
}

// CanTransitionTo checks the transition table
func (s JobStage) CanTransitionTo(target JobStage) bool {
	for _, allowed := range stageTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}
