package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/printpass/backend/internal/domain/render"
)

// SubmitJobRequest is the input for submitting a render job
type SubmitJobRequest struct {
	Pages         []render.PageLayout `json:"pages"`
	AssignedQuota int                 `json:"assigned_quota"`
}

// JobResponse is the read projection of a render job
type JobResponse struct {
	ID               string     `json:"id"`
	Status           string     `json:"status"`
	Stage            string     `json:"stage"`
	TotalPages       int        `json:"total_pages"`
	CompletedPages   int        `json:"completed_pages"`
	AssignedQuota    int        `json:"assigned_quota"`
	OutputDocumentID *uuid.UUID `json:"output_document_id,omitempty"`
	ErrorMessage     string     `json:"error_message,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// ListJobsRequest is the input for listing render jobs
type ListJobsRequest struct {
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
	OrderBy  string `form:"order_by"`
	OrderDir string `form:"order_dir"`
	Status   string `form:"status"`
}

// ListJobsResponse is the paginated job listing
type ListJobsResponse struct {
	Items []JobResponse `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Size  int           `json:"size"`
}

// PageTaskPayload is the payload of a page rasterization task
type PageTaskPayload struct {
	JobID     uuid.UUID `json:"job_id"`
	PageIndex int       `json:"page_index"`
}

// MergeTaskPayload is the payload of a merge task
type MergeTaskPayload struct {
	JobID uuid.UUID `json:"job_id"`
}

func toJobResponse(job *render.Job) *JobResponse {
	return &JobResponse{
		ID:               job.ID.String(),
		Status:           string(job.Status),
		Stage:            string(job.Stage),
		TotalPages:       job.TotalPages,
		CompletedPages:   job.CompletedPages,
		AssignedQuota:    job.AssignedQuota,
		OutputDocumentID: job.OutputDocumentID,
		ErrorMessage:     job.ErrorMessage,
		CreatedAt:        job.CreatedAt,
		UpdatedAt:        job.UpdatedAt,
	}
}
