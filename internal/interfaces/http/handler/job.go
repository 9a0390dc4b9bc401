package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	pipelineapp "github.com/printpass/backend/internal/application/pipeline"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/interfaces/http/dto"
	"github.com/printpass/backend/internal/interfaces/http/middleware"
)

// JobHandler serves the render pipeline endpoints
type JobHandler struct {
	BaseHandler
	renderService *pipelineapp.RenderService
}

// NewJobHandler creates a new JobHandler
func NewJobHandler(renderService *pipelineapp.RenderService) *JobHandler {
	return &JobHandler{renderService: renderService}
}

// SubmitJobHTTPRequest is the body for submitting a render job
type SubmitJobHTTPRequest struct {
	Pages         []render.PageLayout `json:"pages" binding:"required,min=1,max=500"`
	AssignedQuota int                 `json:"assigned_quota" binding:"omitempty,min=0"`
}

// ListJobsQuery binds job listing query parameters
type ListJobsQuery struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=PENDING PROCESSING COMPLETED FAILED"`
}

// RegisterRoutes wires the job endpoints into the API group
func (h *JobHandler) RegisterRoutes(rg *gin.RouterGroup) {
	jobs := rg.Group("/jobs")
	{
		jobs.POST("", h.SubmitJob)
		jobs.GET("", h.ListJobs)
		jobs.GET("/:id", h.GetJob)
	}
}

// SubmitJob accepts a render job; pages render asynchronously
func (h *JobHandler) SubmitJob(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var req SubmitJobHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.renderService.SubmitJob(c.Request.Context(), ownerID, pipelineapp.SubmitJobRequest{
		Pages:         req.Pages,
		AssignedQuota: req.AssignedQuota,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Accepted(c, result)
}

// GetJob returns one job; reading a stalled job triggers its self-heal
func (h *JobHandler) GetJob(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var path dto.IDRequest
	if err := c.ShouldBindUri(&path); err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}
	jobID, err := uuid.Parse(path.ID)
	if err != nil {
		h.BadRequest(c, "Invalid job ID format")
		return
	}

	result, err := h.renderService.GetJob(c.Request.Context(), ownerID, jobID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ListJobs lists the owner's render jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var query ListJobsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	query.Normalize()

	result, err := h.renderService.ListJobs(c.Request.Context(), ownerID, pipelineapp.ListJobsRequest{
		Page:     query.Page,
		PageSize: query.PageSize,
		OrderBy:  query.OrderBy,
		OrderDir: query.OrderDir,
		Status:   query.Status,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.Size)
}
