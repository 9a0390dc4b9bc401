package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	accessapp "github.com/printpass/backend/internal/application/access"
	"github.com/printpass/backend/internal/interfaces/http/middleware"
)

// OfflineHandler serves the offline subsystem: minting machine-bound tokens,
// server-side validation, and reconciliation of locally-recorded prints.
// The whole group is withheld from the router when the capability is off.
type OfflineHandler struct {
	BaseHandler
	offlineService *accessapp.OfflineService
}

// NewOfflineHandler creates a new OfflineHandler
func NewOfflineHandler(offlineService *accessapp.OfflineService) *OfflineHandler {
	return &OfflineHandler{offlineService: offlineService}
}

// PrepareOfflineHTTPRequest is the body for minting an offline token
type PrepareOfflineHTTPRequest struct {
	DocumentID      string `json:"document_id" binding:"required,uuid"`
	MachineGuidHash string `json:"machine_guid_hash" binding:"required,machine_hash"`
	TTLSeconds      int64  `json:"ttl_seconds" binding:"omitempty,min=1"`
}

// ValidateOfflineHTTPRequest is the body for validating a signed token
type ValidateOfflineHTTPRequest struct {
	SignedToken     string `json:"signed_token" binding:"required"`
	MachineGuidHash string `json:"machine_guid_hash" binding:"required,machine_hash"`
}

// ReconcileHTTPItem is one locally-recorded print in a reconcile batch
type ReconcileHTTPItem struct {
	Token           string    `json:"token" binding:"required,uuid"`
	MachineGuidHash string    `json:"machine_guid_hash" binding:"required,machine_hash"`
	PrintedAt       time.Time `json:"printed_at" binding:"required"`
	PrinterName     string    `json:"printer_name" binding:"omitempty,max=255"`
}

// ReconcileHTTPRequest is the body for a reconcile batch
type ReconcileHTTPRequest struct {
	Items []ReconcileHTTPItem `json:"items" binding:"required,min=1,max=100,dive"`
}

// Enabled reports whether the offline capability is configured on
func (h *OfflineHandler) Enabled() bool {
	return h.offlineService.Enabled()
}

// RegisterRoutes wires the offline endpoints into the API group
func (h *OfflineHandler) RegisterRoutes(rg *gin.RouterGroup) {
	offline := rg.Group("/offline")
	{
		offline.POST("/tokens", h.PrepareOffline)
		offline.POST("/validate", h.ValidateOffline)
		offline.POST("/reconcile", h.Reconcile)
	}
}

// PrepareOffline mints a machine-bound offline token, charging the quota up
// front
func (h *OfflineHandler) PrepareOffline(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var req PrepareOfflineHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	documentID, err := uuid.Parse(req.DocumentID)
	if err != nil {
		h.BadRequest(c, "Invalid document ID format")
		return
	}

	result, err := h.offlineService.PrepareOffline(c.Request.Context(), ownerID, accessapp.PrepareOfflineRequest{
		DocumentID:      documentID,
		MachineGuidHash: req.MachineGuidHash,
		TTL:             time.Duration(req.TTLSeconds) * time.Second,
	})
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Created(c, result)
}

// ValidateOffline checks a signed offline token server-side without touching
// the ledger
func (h *OfflineHandler) ValidateOffline(c *gin.Context) {
	var req ValidateOfflineHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.offlineService.ValidateOffline(c.Request.Context(), req.SignedToken, req.MachineGuidHash)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}

// Reconcile processes a batch of locally-recorded offline prints. Per-item
// failures are reported in the response body, never as an HTTP error.
func (h *OfflineHandler) Reconcile(c *gin.Context) {
	ownerID, err := getOwnerID(c)
	if err != nil {
		h.Unauthorized(c, "Owner identity is required")
		return
	}

	var req ReconcileHTTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	items := make([]accessapp.ReconcileItem, len(req.Items))
	for i, item := range req.Items {
		items[i] = accessapp.ReconcileItem{
			Token:           item.Token,
			MachineGuidHash: item.MachineGuidHash,
			PrintedAt:       item.PrintedAt,
			PrinterName:     item.PrinterName,
		}
	}

	result, err := h.offlineService.Reconcile(c.Request.Context(), ownerID, items)
	if err != nil {
		h.HandleDomainError(c, err)
		return
	}

	h.Success(c, result)
}
