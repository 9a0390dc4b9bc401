// Package access implements the print-authorization use cases: issuing and
// redeeming single-use print tokens against the ledger, and the
// capability-flagged offline token subsystem.
package access

import (
	"time"

	"github.com/google/uuid"
)

// TokenResponse is returned when a print token is issued
type TokenResponse struct {
	Token           string    `json:"token"`
	DocumentID      string    `json:"document_id"`
	ExpiresAt       time.Time `json:"expires_at"`
	RemainingPrints int       `json:"remaining_prints"`
}

// ContentResponse carries the document bytes streamed for a fetched token
type ContentResponse struct {
	Data        []byte `json:"-"`
	ContentType string `json:"content_type"`
	DocumentID  string `json:"document_id"`
}

// ConfirmResponse reports the ledger state after a confirmed print
type ConfirmResponse struct {
	UsedPrints      int  `json:"used_prints"`
	RemainingPrints int  `json:"remaining_prints"`
	Exhausted       bool `json:"exhausted"`
}

// LedgerEntryResponse is the read projection of a ledger entry
type LedgerEntryResponse struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	AssignedQuota   int       `json:"assigned_quota"`
	UsedPrints      int       `json:"used_prints"`
	RemainingPrints int       `json:"remaining_prints"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ListLedgerEntriesRequest filters the owner's ledger entry listing
type ListLedgerEntriesRequest struct {
	Page     int    `json:"page"`
	PageSize int    `json:"page_size"`
	OrderBy  string `json:"order_by"`
	OrderDir string `json:"order_dir"`
	Status   string `json:"status"`
}

// ListLedgerEntriesResponse is a paginated ledger entry listing
type ListLedgerEntriesResponse struct {
	Items []LedgerEntryResponse `json:"items"`
	Total int64                 `json:"total"`
	Page  int                   `json:"page"`
	Size  int                   `json:"size"`
}

// AuditEntryResponse is the read projection of one audit log record
type AuditEntryResponse struct {
	ID              string    `json:"id"`
	DocumentID      string    `json:"document_id"`
	TokenID         string    `json:"token_id"`
	Action          string    `json:"action"`
	PrinterName     string    `json:"printer_name,omitempty"`
	MachineGuidHash string    `json:"machine_guid_hash,omitempty"`
	Detail          string    `json:"detail,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListAuditRequest filters the owner's audit log listing
type ListAuditRequest struct {
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	Action     string `json:"action"`
	DocumentID string `json:"document_id"`
}

// ListAuditResponse is a page of audit log records, newest first
type ListAuditResponse struct {
	Items []AuditEntryResponse `json:"items"`
	Page  int                  `json:"page"`
	Size  int                  `json:"size"`
}

// PrepareOfflineRequest mints a machine-bound offline token
type PrepareOfflineRequest struct {
	DocumentID      uuid.UUID     `json:"document_id"`
	MachineGuidHash string        `json:"machine_guid_hash"`
	TTL             time.Duration `json:"ttl"`
}

// OfflineTokenResponse is returned when an offline token is minted. The
// signed token validates locally on the bound machine; the content URL lets
// the client cache the document while still online.
type OfflineTokenResponse struct {
	Token               string    `json:"token"`
	SignedToken         string    `json:"signed_token"`
	ExpiresAt           time.Time `json:"expires_at"`
	ContentURL          string    `json:"content_url"`
	ContentURLExpiresAt time.Time `json:"content_url_expires_at"`
	RemainingPrints     int       `json:"remaining_prints"`
}

// ValidateOfflineResponse reports a server-side offline token check
type ValidateOfflineResponse struct {
	Token      string    `json:"token"`
	DocumentID string    `json:"document_id"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ReconcileItem is one locally-recorded offline redemption reported back by
// a reconnecting client.
type ReconcileItem struct {
	Token           string    `json:"token"`
	MachineGuidHash string    `json:"machine_guid_hash"`
	PrintedAt       time.Time `json:"printed_at"`
	PrinterName     string    `json:"printer_name"`
}

// ReconcileResult is the per-item outcome of a reconciliation batch
type ReconcileResult struct {
	Token    string `json:"token"`
	Accepted bool   `json:"accepted"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// ReconcileResponse summarizes a reconciliation batch
type ReconcileResponse struct {
	Results  []ReconcileResult `json:"results"`
	Accepted int               `json:"accepted"`
	Rejected int               `json:"rejected"`
}
