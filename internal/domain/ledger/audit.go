package ledger

import (
	"time"

	"github.com/google/uuid"
)

// AuditEntry is an append-only record of a redemption event. Entries are
// written regardless of outcome and never updated or deleted.
type AuditEntry struct {
	ID              uuid.UUID
	OwnerID         uuid.UUID
	DocumentID      uuid.UUID
	TokenID         uuid.UUID
	Action          AuditAction
	PrinterName     string
	MachineGuidHash string
	Detail          string
	CreatedAt       time.Time
}

// NewAuditEntry creates an audit entry for the given token event
func NewAuditEntry(ownerID, documentID, tokenID uuid.UUID, action AuditAction, detail string) *AuditEntry {
	return &AuditEntry{
		ID:         uuid.New(),
		OwnerID:    ownerID,
		DocumentID: documentID,
		TokenID:    tokenID,
		Action:     action,
		Detail:     detail,
		CreatedAt:  time.Now(),
	}
}

// WithPrinter records the printer identity reported by the client
func (a *AuditEntry) WithPrinter(printerName string) *AuditEntry {
	a.PrinterName = printerName
	return a
}

// WithMachine records the machine binding for offline redemptions
func (a *AuditEntry) WithMachine(machineGuidHash string) *AuditEntry {
	a.MachineGuidHash = machineGuidHash
	return a
}
