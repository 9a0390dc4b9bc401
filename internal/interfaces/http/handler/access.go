package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessapp "github.com/printpass/backend/internal/application/access"
	"github.com/printpass/backend/internal/interfaces/http/dto"
	"github.com/printpass/backend/internal/interfaces/http/middleware"
)

// AccessHandler serves the online print-authorization endpoints: token
// issuance, single-use content fetch, print confirmation, and the ledger and
// audit read projections.
type AccessHandler struct {
	BaseHandler
	tokenService *accessapp.TokenService
}

// NewAccessHandler creates a new AccessHandler
func NewAccessHandler(tokenService *accessapp.TokenService) *AccessHandler {
	return &AccessHandler{tokenService: tokenService}
}

// IssueTokenRequest is the body for requesting a print token
type IssueTokenRequest struct {
	DocumentID string `json:"document_id" binding:"required,uuid"`
}

// TokenPathRequest binds the token path parameter
type TokenPathRequest struct {
	Token string `uri:"token" binding:"required,uuid"`
}

// ConfirmPrintRequest is the body for confirming a print
type ConfirmPrintRequest struct {
	PrinterName string `json:"printer_name" binding:"omitempty,max=255"`
}

// ListLedgerQuery binds ledger listing query parameters
type ListLedgerQuery struct {
	dto.ListRequest
	Status string `form:"status" binding:"omitempty,oneof=ACTIVE EXHAUSTED"`
}

// ListAuditQuery binds audit listing query parameters
type ListAuditQuery struct {
	dto.ListRequest
	Action     string `form:"action"`
	DocumentID string `form:"document_id" binding:"omitempty,uuid"`
}

// RegisterRoutes wires the access endpoints into the API group
func (h *AccessHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tokens := rg.Group("/tokens")
	{
		tokens.POST("", h.IssueToken)
		tokens.GET("/:token/content", h.FetchContent)
		tokens.POST("/:token/confirm", h.ConfirmPrint)
	}
	rg.GET("/ledger", h.ListLedgerEntries)
	rg.GET("/audit", h.ListAudit)
}

// IssueToken issues a short-lived single-use print token for a document
func (h *AccessHandler) IssueToken(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var req IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	result, err := h.tokenService.IssueToken(c.Request.Context(), ownerID, documentID)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// FetchContent streams the document bytes for an unexpired token. The fetch
// burns the token; a second request for the same token gets a conflict.
func (h *AccessHandler) FetchContent(c *gin.Context) {
	var path TokenPathRequest
	if err := c.ShouldBindUri(&path); err != nil {
		h.BadRequest(c, "Invalid token format")
		return
	}

	result, err := h.tokenService.FetchContent(c.Request.Context(), path.Token)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	c.Header("X-Document-ID", result.DocumentID)
	c.Data(http.StatusOK, result.ContentType, result.Data)
}

// ConfirmPrint reports a completed print, consuming one quota unit
func (h *AccessHandler) ConfirmPrint(c *gin.Context) {
	var path TokenPathRequest
	if err := c.ShouldBindUri(&path); err != nil {
		h.BadRequest(c, "Invalid token format")
		return
	}

	var req ConfirmPrintRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.tokenService.ConfirmPrint(c.Request.Context(), path.Token, req.PrinterName)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// ListLedgerEntries lists the owner's ledger entries
func (h *AccessHandler) ListLedgerEntries(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var query ListLedgerQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	query.Normalize()

	result, err := h.tokenService.ListLedgerEntries(c.Request.Context(), ownerID, accessapp.ListLedgerEntriesRequest{
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

// ListAudit lists the owner's audit trail
func (h *AccessHandler) ListAudit(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var query ListAuditQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	query.Normalize()

	result, err := h.tokenService.ListAudit(c.Request.Context(), ownerID, accessapp.ListAuditRequest{
		Page:       query.Page,
		PageSize:   query.PageSize,
		Action:     query.Action,
		DocumentID: query.DocumentID,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result.Items)
}
