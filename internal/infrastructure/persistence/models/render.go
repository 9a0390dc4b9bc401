package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/domain/shared"
)

// RenderJobModel is the GORM model for the render_jobs table. The page
// layouts are stored as a JSON document so a failed job can be re-rendered
// from what was originally submitted.
type RenderJobModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primary_key"`
	OwnerID          uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	AssignedQuota    int        `gorm:"column:assigned_quota;not null;default:0"`
	LayoutPages      []byte     `gorm:"column:layout_pages;type:jsonb;not null"`
	TotalPages       int        `gorm:"column:total_pages;not null"`
	CompletedPages   int        `gorm:"column:completed_pages;not null;default:0"`
	OutputDocumentID *uuid.UUID `gorm:"column:output_document_id;type:uuid"`
	Status           string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	Stage            string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	ErrorMessage     string     `gorm:"column:error_message;type:text"`
	LastHealAt       *time.Time `gorm:"column:last_heal_at"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
	Version          int        `gorm:"not null;default:1"`

	Artifacts []RenderPageArtifactModel `gorm:"foreignKey:JobID"`
}

// TableName returns the table name for RenderJobModel
func (RenderJobModel) TableName() string {
	return "render_jobs"
}

// ToDomain converts RenderJobModel to a domain Job
func (m *RenderJobModel) ToDomain() (*render.Job, error) {
	var layouts []render.PageLayout
	if len(m.LayoutPages) > 0 {
		if err := json.Unmarshal(m.LayoutPages, &layouts); err != nil {
			return nil, fmt.Errorf("failed to decode stored page layouts for job %s: %w", m.ID, err)
		}
	}

	artifacts := make([]render.PageArtifact, len(m.Artifacts))
	for i, a := range m.Artifacts {
		artifacts[i] = *a.ToDomain()
	}

	return &render.Job{
		OwnedAggregateRoot: shared.OwnedAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{
					ID:        m.ID,
					CreatedAt: m.CreatedAt,
					UpdatedAt: m.UpdatedAt,
				},
				Version: m.Version,
			},
			OwnerID: m.OwnerID,
		},
		AssignedQuota:    m.AssignedQuota,
		LayoutPages:      layouts,
		TotalPages:       m.TotalPages,
		CompletedPages:   m.CompletedPages,
		PageArtifacts:    artifacts,
		OutputDocumentID: m.OutputDocumentID,
		Status:           render.JobStatus(m.Status),
		Stage:            render.JobStage(m.Stage),
		ErrorMessage:     m.ErrorMessage,
		LastHealAt:       m.LastHealAt,
	}, nil
}

// RenderJobModelFromDomain creates a RenderJobModel from a domain Job.
// Artifact rows are managed separately through AppendArtifact and are not
// written as part of the job row.
func RenderJobModelFromDomain(j *render.Job) (*RenderJobModel, error) {
	layouts, err := json.Marshal(j.LayoutPages)
	if err != nil {
		return nil, fmt.Errorf("failed to encode page layouts: %w", err)
	}

	return &RenderJobModel{
		ID:               j.ID,
		OwnerID:          j.OwnerID,
		AssignedQuota:    j.AssignedQuota,
		LayoutPages:      layouts,
		TotalPages:       j.TotalPages,
		CompletedPages:   j.CompletedPages,
		OutputDocumentID: j.OutputDocumentID,
		Status:           string(j.Status),
		Stage:            string(j.Stage),
		ErrorMessage:     j.ErrorMessage,
		LastHealAt:       j.LastHealAt,
		CreatedAt:        j.CreatedAt,
		UpdatedAt:        j.UpdatedAt,
		Version:          j.Version,
	}, nil
}

// RenderPageArtifactModel is the GORM model for the render_page_artifacts
// table. Rows are append-only; duplicates per (job, index) are tolerated and
// collapsed at read time.
type RenderPageArtifactModel struct {
	ID         uuid.UUID `gorm:"type:uuid;primary_key"`
	JobID      uuid.UUID `gorm:"column:job_id;type:uuid;not null;index:idx_artifact_job_page,priority:1"`
	PageIndex  int       `gorm:"column:page_index;not null;index:idx_artifact_job_page,priority:2"`
	StorageKey string    `gorm:"column:storage_key;type:varchar(512);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName returns the table name for RenderPageArtifactModel
func (RenderPageArtifactModel) TableName() string {
	return "render_page_artifacts"
}

// ToDomain converts RenderPageArtifactModel to a domain PageArtifact
func (m *RenderPageArtifactModel) ToDomain() *render.PageArtifact {
	return &render.PageArtifact{
		JobID:      m.JobID,
		PageIndex:  m.PageIndex,
		StorageKey: m.StorageKey,
		CreatedAt:  m.CreatedAt,
	}
}

// RenderPageArtifactModelFromDomain creates a RenderPageArtifactModel from a
// domain PageArtifact
func RenderPageArtifactModelFromDomain(a *render.PageArtifact) *RenderPageArtifactModel {
	return &RenderPageArtifactModel{
		ID:         uuid.New(),
		JobID:      a.JobID,
		PageIndex:  a.PageIndex,
		StorageKey: a.StorageKey,
		CreatedAt:  a.CreatedAt,
	}
}
