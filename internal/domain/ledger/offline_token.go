package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// DefaultOfflineTokenTTL is used when the caller does not supply a TTL.
const DefaultOfflineTokenTTL = 24 * time.Hour

// OfflineToken is a machine-bound credential whose quota cost is charged at
// mint time: the device may never reconnect, so the pessimistic decrement is
// the only safe accounting. Reconciliation confirms or flags the redemption
// via the audit log and never re-credits the ledger.
type OfflineToken struct {
	shared.BaseEntity
	Token           string
	OwnerID         uuid.UUID
	DocumentID      uuid.UUID
	LedgerEntryID   uuid.UUID
	MachineGuidHash string // binds redemption to one physical machine
	SignedToken     string // detached JWT handed to the client for offline validation
	ExpiresAt       time.Time
	UsedAt          *time.Time
	ReconciledAt    *time.Time
	PrinterName     string
}

// NewOfflineToken mints a machine-bound offline token
func NewOfflineToken(ownerID, documentID, entryID uuid.UUID, machineGuidHash string, ttl time.Duration) (*OfflineToken, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if documentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document ID cannot be empty")
	}
	if entryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTRY", "Ledger entry ID cannot be empty")
	}
	if machineGuidHash == "" {
		return nil, shared.NewDomainError("INVALID_MACHINE_HASH", "Machine GUID hash cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultOfflineTokenTTL
	}

	return &OfflineToken{
		BaseEntity:      shared.NewBaseEntity(),
		Token:           uuid.NewString(),
		OwnerID:         ownerID,
		DocumentID:      documentID,
		LedgerEntryID:   entryID,
		MachineGuidHash: machineGuidHash,
		ExpiresAt:       time.Now().Add(ttl),
	}, nil
}

// IsExpired returns true if the token TTL has passed
func (t *OfflineToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsUsed returns true if the token has been redeemed
func (t *OfflineToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsReconciled returns true if the redemption has been reconciled
func (t *OfflineToken) IsReconciled() bool {
	return t.ReconciledAt != nil
}

// Validate checks redeemability on the given machine at the given time.
// The ledger is not touched: the quota was already charged at mint time.
func (t *OfflineToken) Validate(machineGuidHash string, now time.Time) error {
	if t.MachineGuidHash != machineGuidHash {
		return shared.NewDomainError("MACHINE_MISMATCH", "Token is bound to a different machine")
	}
	if t.IsUsed() {
		return shared.ErrAlreadyUsed
	}
	if t.IsExpired(now) {
		return shared.ErrExpired
	}
	return nil
}

// ValidateRedemption checks a locally-recorded redemption during batch
// reconciliation: the machine must match and the claimed print time must fall
// within the token's validity window.
func (t *OfflineToken) ValidateRedemption(machineGuidHash string, printedAt time.Time) error {
	if t.MachineGuidHash != machineGuidHash {
		return shared.NewDomainError("MACHINE_MISMATCH", "Token is bound to a different machine")
	}
	if t.IsUsed() || t.IsReconciled() {
		return shared.ErrAlreadyUsed
	}
	if printedAt.Before(t.CreatedAt) || printedAt.After(t.ExpiresAt) {
		return shared.NewDomainError("OUT_OF_WINDOW", "Claimed print time falls outside the token validity window")
	}
	return nil
}
