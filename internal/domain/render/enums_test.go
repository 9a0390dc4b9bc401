package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStatusTransitions(t *testing.T) {
	cases := []struct {
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{JobStatusPending, JobStatusProcessing, true},
		{JobStatusPending, JobStatusFailed, true},
		{JobStatusPending, JobStatusCompleted, false},
		{JobStatusProcessing, JobStatusCompleted, true},
		{JobStatusProcessing, JobStatusFailed, true},
		{JobStatusProcessing, JobStatusPending, false},
		// Recovery path: a failed job goes back to processing.
		{JobStatusFailed, JobStatusProcessing, true},
		{JobStatusFailed, JobStatusCompleted, false},
		{JobStatusCompleted, JobStatusProcessing, false},
		{JobStatusCompleted, JobStatusFailed, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestJobStageTransitions(t *testing.T) {
	cases := []struct {
		from    JobStage
		to      JobStage
		allowed bool
	}{
		{StagePending, StageRendering, true},
		{StagePending, StageMerging, false},
		{StageRendering, StageMerging, true},
		{StageRendering, StageCompleted, false},
		{StageMerging, StageCompleted, true},
		{StageMerging, StageRendering, false},
		// Recovery path: a failed job re-enters rendering.
		{StageFailed, StageRendering, true},
		{StageFailed, StageMerging, false},
		{StageCompleted, StageRendering, false},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStageIsTerminal(t *testing.T) {
	assert.True(t, StageCompleted.IsTerminal())
	// FAILED is recoverable, not terminal.
	assert.False(t, StageFailed.IsTerminal())
	assert.False(t, StageRendering.IsTerminal())
	assert.False(t, StageMerging.IsTerminal())
	assert.False(t, StagePending.IsTerminal())
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, JobStatusProcessing.IsValid())
	assert.False(t, JobStatus("RUNNING").IsValid())
	assert.True(t, StageMerging.IsValid())
	assert.False(t, JobStage("UPLOADING").IsValid())
}
