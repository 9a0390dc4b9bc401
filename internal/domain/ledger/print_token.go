package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// DefaultPrintTokenTTL bounds the exposure window of an online token between
// issuance and redemption.
const DefaultPrintTokenTTL = 60 * time.Second

// PrintToken is a short-lived, single-use credential. Its lifecycle is
// issue → fetch (content streamed, FetchedAt set exactly once) →
// confirm (physical print reported, UsedAt set exactly once, quota charged).
// The FetchedAt/UsedAt transitions are enforced by conditional updates in the
// repository; the methods here cover validation and the single-process paths.
type PrintToken struct {
	shared.BaseEntity
	Token         string
	OwnerID       uuid.UUID
	DocumentID    uuid.UUID
	LedgerEntryID uuid.UUID
	ExpiresAt     time.Time
	FetchedAt     *time.Time // set exactly once when content is streamed
	UsedAt        *time.Time // set exactly once when the print is confirmed
	InvalidatedAt *time.Time // set when the ledger entry exhausts with this token outstanding
	PrinterName   string
}

// NewPrintToken mints a token for the given ledger entry
func NewPrintToken(ownerID, documentID, entryID uuid.UUID, ttl time.Duration) (*PrintToken, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if documentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document ID cannot be empty")
	}
	if entryID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ENTRY", "Ledger entry ID cannot be empty")
	}
	if ttl <= 0 {
		ttl = DefaultPrintTokenTTL
	}

	return &PrintToken{
		BaseEntity:    shared.NewBaseEntity(),
		Token:         uuid.NewString(),
		OwnerID:       ownerID,
		DocumentID:    documentID,
		LedgerEntryID: entryID,
		ExpiresAt:     time.Now().Add(ttl),
	}, nil
}

// IsExpired returns true if the token TTL has passed
func (t *PrintToken) IsExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// IsFetched returns true if the content has been streamed for this token
func (t *PrintToken) IsFetched() bool {
	return t.FetchedAt != nil
}

// IsUsed returns true if the print has been confirmed
func (t *PrintToken) IsUsed() bool {
	return t.UsedAt != nil
}

// IsInvalidated returns true if the token was voided by ledger exhaustion
func (t *PrintToken) IsInvalidated() bool {
	return t.InvalidatedAt != nil
}

// IsOutstanding reports whether the token still blocks issuance of another
// token for the same ledger entry: not fetched, not expired, not invalidated.
func (t *PrintToken) IsOutstanding(now time.Time) bool {
	return !t.IsFetched() && !t.IsExpired(now) && !t.IsInvalidated()
}

// CanConfirm validates the confirm preconditions: fetched, unused, unexpired,
// not invalidated.
func (t *PrintToken) CanConfirm(now time.Time) error {
	if t.IsExpired(now) {
		return shared.ErrExpired
	}
	if t.IsInvalidated() || t.IsUsed() {
		return shared.ErrAlreadyUsed
	}
	if !t.IsFetched() {
		return shared.NewDomainError("NOT_FETCHED", "Content has not been fetched for this token")
	}
	return nil
}
