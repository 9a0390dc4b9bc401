package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/ledger"
	"github.com/printpass/backend/internal/domain/shared"
)

// LedgerEntryModel is the GORM model for the ledger_entries table.
// The (owner_id, document_id) pair is unique: there is exactly one quota
// record per owner per document.
type LedgerEntryModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	OwnerID         uuid.UUID `gorm:"column:owner_id;type:uuid;not null;uniqueIndex:idx_ledger_owner_document,priority:1"`
	DocumentID      uuid.UUID `gorm:"column:document_id;type:uuid;not null;uniqueIndex:idx_ledger_owner_document,priority:2"`
	AssignedQuota   int       `gorm:"column:assigned_quota;not null;default:0"`
	UsedPrints      int       `gorm:"column:used_prints;not null;default:0"`
	Status          string    `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	RedemptionToken *string   `gorm:"column:redemption_token;type:varchar(64)"`
	CreatedAt       time.Time `gorm:"not null"`
	UpdatedAt       time.Time `gorm:"not null"`
	Version         int       `gorm:"not null;default:1"`
}

// TableName returns the table name for LedgerEntryModel
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts LedgerEntryModel to a domain Entry
func (m *LedgerEntryModel) ToDomain() *ledger.Entry {
	return &ledger.Entry{
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
		DocumentID:      m.DocumentID,
		AssignedQuota:   m.AssignedQuota,
		UsedPrints:      m.UsedPrints,
		Status:          ledger.EntryStatus(m.Status),
		RedemptionToken: m.RedemptionToken,
	}
}

// LedgerEntryModelFromDomain creates a LedgerEntryModel from a domain Entry
func LedgerEntryModelFromDomain(e *ledger.Entry) *LedgerEntryModel {
	return &LedgerEntryModel{
		ID:              e.ID,
		OwnerID:         e.OwnerID,
		DocumentID:      e.DocumentID,
		AssignedQuota:   e.AssignedQuota,
		UsedPrints:      e.UsedPrints,
		Status:          string(e.Status),
		RedemptionToken: e.RedemptionToken,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
		Version:         e.Version,
	}
}

// PrintTokenModel is the GORM model for the print_tokens table. The partial
// unique index admits at most one in-flight (unfetched, uninvalidated) token
// per ledger entry.
type PrintTokenModel struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key"`
	Token         string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	OwnerID       uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	DocumentID    uuid.UUID  `gorm:"column:document_id;type:uuid;not null"`
	LedgerEntryID uuid.UUID  `gorm:"column:ledger_entry_id;type:uuid;not null;index;index:idx_print_tokens_entry_in_flight,unique,where:fetched_at IS NULL AND invalidated_at IS NULL"`
	ExpiresAt     time.Time  `gorm:"column:expires_at;not null;index"`
	FetchedAt     *time.Time `gorm:"column:fetched_at"`
	UsedAt        *time.Time `gorm:"column:used_at"`
	InvalidatedAt *time.Time `gorm:"column:invalidated_at"`
	PrinterName   string     `gorm:"column:printer_name;type:varchar(255)"`
	CreatedAt     time.Time  `gorm:"not null"`
	UpdatedAt     time.Time  `gorm:"not null"`
}

// TableName returns the table name for PrintTokenModel
func (PrintTokenModel) TableName() string {
	return "print_tokens"
}

// ToDomain converts PrintTokenModel to a domain PrintToken
func (m *PrintTokenModel) ToDomain() *ledger.PrintToken {
	return &ledger.PrintToken{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Token:         m.Token,
		OwnerID:       m.OwnerID,
		DocumentID:    m.DocumentID,
		LedgerEntryID: m.LedgerEntryID,
		ExpiresAt:     m.ExpiresAt,
		FetchedAt:     m.FetchedAt,
		UsedAt:        m.UsedAt,
		InvalidatedAt: m.InvalidatedAt,
		PrinterName:   m.PrinterName,
	}
}

// PrintTokenModelFromDomain creates a PrintTokenModel from a domain PrintToken
func PrintTokenModelFromDomain(t *ledger.PrintToken) *PrintTokenModel {
	return &PrintTokenModel{
		ID:            t.ID,
		Token:         t.Token,
		OwnerID:       t.OwnerID,
		DocumentID:    t.DocumentID,
		LedgerEntryID: t.LedgerEntryID,
		ExpiresAt:     t.ExpiresAt,
		FetchedAt:     t.FetchedAt,
		UsedAt:        t.UsedAt,
		InvalidatedAt: t.InvalidatedAt,
		PrinterName:   t.PrinterName,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

// OfflineTokenModel is the GORM model for the offline_tokens table
type OfflineTokenModel struct {
	ID              uuid.UUID  `gorm:"type:uuid;primary_key"`
	Token           string     `gorm:"type:varchar(64);not null;uniqueIndex"`
	OwnerID         uuid.UUID  `gorm:"column:owner_id;type:uuid;not null;index"`
	DocumentID      uuid.UUID  `gorm:"column:document_id;type:uuid;not null"`
	LedgerEntryID   uuid.UUID  `gorm:"column:ledger_entry_id;type:uuid;not null;index"`
	MachineGuidHash string     `gorm:"column:machine_guid_hash;type:varchar(128);not null"`
	SignedToken     string     `gorm:"column:signed_token;type:text;not null"`
	ExpiresAt       time.Time  `gorm:"column:expires_at;not null;index"`
	UsedAt          *time.Time `gorm:"column:used_at"`
	ReconciledAt    *time.Time `gorm:"column:reconciled_at"`
	PrinterName     string     `gorm:"column:printer_name;type:varchar(255)"`
	CreatedAt       time.Time  `gorm:"not null"`
	UpdatedAt       time.Time  `gorm:"not null"`
}

// TableName returns the table name for OfflineTokenModel
func (OfflineTokenModel) TableName() string {
	return "offline_tokens"
}

// ToDomain converts OfflineTokenModel to a domain OfflineToken
func (m *OfflineTokenModel) ToDomain() *ledger.OfflineToken {
	return &ledger.OfflineToken{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Token:           m.Token,
		OwnerID:         m.OwnerID,
		DocumentID:      m.DocumentID,
		LedgerEntryID:   m.LedgerEntryID,
		MachineGuidHash: m.MachineGuidHash,
		SignedToken:     m.SignedToken,
		ExpiresAt:       m.ExpiresAt,
		UsedAt:          m.UsedAt,
		ReconciledAt:    m.ReconciledAt,
		PrinterName:     m.PrinterName,
	}
}

// OfflineTokenModelFromDomain creates an OfflineTokenModel from a domain OfflineToken
func OfflineTokenModelFromDomain(t *ledger.OfflineToken) *OfflineTokenModel {
	return &OfflineTokenModel{
		ID:              t.ID,
		Token:           t.Token,
		OwnerID:         t.OwnerID,
		DocumentID:      t.DocumentID,
		LedgerEntryID:   t.LedgerEntryID,
		MachineGuidHash: t.MachineGuidHash,
		SignedToken:     t.SignedToken,
		ExpiresAt:       t.ExpiresAt,
		UsedAt:          t.UsedAt,
		ReconciledAt:    t.ReconciledAt,
		PrinterName:     t.PrinterName,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
	}
}

// AuditLogModel is the GORM model for the print_audit_logs table.
// Rows are append-only: inserted once, never updated.
type AuditLogModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key"`
	OwnerID         uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index:idx_audit_owner_created,priority:1"`
	DocumentID      uuid.UUID `gorm:"column:document_id;type:uuid;not null"`
	TokenID         uuid.UUID `gorm:"column:token_id;type:uuid;not null"`
	Action          string    `gorm:"type:varchar(40);not null"`
	PrinterName     string    `gorm:"column:printer_name;type:varchar(255)"`
	MachineGuidHash string    `gorm:"column:machine_guid_hash;type:varchar(128)"`
	Detail          string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;index:idx_audit_owner_created,priority:2"`
}

// TableName returns the table name for AuditLogModel
func (AuditLogModel) TableName() string {
	return "print_audit_logs"
}

// ToDomain converts AuditLogModel to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *ledger.AuditEntry {
	return &ledger.AuditEntry{
		ID:              m.ID,
		OwnerID:         m.OwnerID,
		DocumentID:      m.DocumentID,
		TokenID:         m.TokenID,
		Action:          ledger.AuditAction(m.Action),
		PrinterName:     m.PrinterName,
		MachineGuidHash: m.MachineGuidHash,
		Detail:          m.Detail,
		CreatedAt:       m.CreatedAt,
	}
}

// AuditLogModelFromDomain creates an AuditLogModel from a domain AuditEntry
func AuditLogModelFromDomain(a *ledger.AuditEntry) *AuditLogModel {
	return &AuditLogModel{
		ID:              a.ID,
		OwnerID:         a.OwnerID,
		DocumentID:      a.DocumentID,
		TokenID:         a.TokenID,
		Action:          string(a.Action),
		PrinterName:     a.PrinterName,
		MachineGuidHash: a.MachineGuidHash,
		Detail:          a.Detail,
		CreatedAt:       a.CreatedAt,
	}
}
