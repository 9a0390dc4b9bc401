package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// ConsumeResult reports the ledger state after a successful guarded increment
type ConsumeResult struct {
	UsedPrints      int
	RemainingPrints int
	Exhausted       bool
}

// EntryRepository provides access to ledger entries. All quota mutation goes
// through ConsumePrint; plain Save must never change UsedPrints on a
// persisted entry.
type EntryRepository interface {
	// FindByID finds an entry by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Entry, error)

	// FindByOwnerAndDocument finds the entry for an (owner, document) pair
	FindByOwnerAndDocument(ctx context.Context, ownerID, documentID uuid.UUID) (*Entry, error)

	// FindAllForOwner lists entries belonging to an owner
	FindAllForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]Entry, error)

	// CountForOwner counts entries belonging to an owner
	CountForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) (int64, error)

	// Save inserts a new entry
	Save(ctx context.Context, entry *Entry) error

	// Upsert creates the entry for (owner, document) or refreshes an existing
	// one with a full quota and a fresh redemption identifier. Used by the
	// merge coordinator when a job completes.
	Upsert(ctx context.Context, entry *Entry) error

	// ConsumePrint performs the atomic compare-and-increment:
	//
	//	UPDATE ... SET used_prints = used_prints + 1
	//	WHERE id = ? AND status = 'ACTIVE' AND used_prints < assigned_quota
	//
	// Zero rows affected maps to shared.ErrQuotaExceeded (or ErrNotFound when
	// the entry does not exist). When the increment reaches the quota the
	// entry is atomically flipped to EXHAUSTED and its redemption token
	// cleared. Never implemented as read-then-write.
	ConsumePrint(ctx context.Context, entryID uuid.UUID) (*ConsumeResult, error)
}

// PrintTokenRepository provides access to online print tokens
type PrintTokenRepository interface {
	// FindByToken finds a token by its opaque value
	FindByToken(ctx context.Context, token string) (*PrintToken, error)

	// FindOutstanding returns the unfetched, unexpired, uninvalidated token
	// for a ledger entry, or shared.ErrNotFound if none is outstanding.
	FindOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (*PrintToken, error)

	// Save inserts a new token. At most one in-flight (unfetched,
	// uninvalidated) token may exist per ledger entry; a conflicting insert
	// maps to shared.ErrAlreadyInFlight.
	Save(ctx context.Context, token *PrintToken) error

	// InvalidateExpired voids unfetched tokens on a ledger entry whose expiry
	// has passed, freeing the in-flight slot for a fresh issue. Returns the
	// number invalidated.
	InvalidateExpired(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error)

	// MarkFetched sets fetched_at under the guard `fetched_at IS NULL AND
	// invalidated_at IS NULL`; zero rows affected maps to
	// shared.ErrAlreadyUsed. This is the exactly-once fetch mechanism.
	MarkFetched(ctx context.Context, token string, now time.Time) error

	// MarkUsed sets used_at and printer_name under the guard `fetched_at IS
	// NOT NULL AND used_at IS NULL AND invalidated_at IS NULL`; zero rows
	// affected maps to shared.ErrAlreadyUsed.
	MarkUsed(ctx context.Context, token string, now time.Time, printerName string) error

	// InvalidateOutstanding voids every unused, unfetched token on a ledger
	// entry. Called when the entry exhausts. Returns the number invalidated.
	InvalidateOutstanding(ctx context.Context, entryID uuid.UUID, now time.Time) (int64, error)

	// DeleteExpiredBefore garbage-collects tokens whose expiry predates the
	// cutoff. Returns the number deleted.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OfflineTokenRepository provides access to machine-bound offline tokens
type OfflineTokenRepository interface {
	// FindByToken finds an offline token by its opaque value
	FindByToken(ctx context.Context, token string) (*OfflineToken, error)

	// Save inserts a new offline token
	Save(ctx context.Context, token *OfflineToken) error

	// MarkReconciled sets used_at, reconciled_at and printer_name under the
	// guard `used_at IS NULL AND reconciled_at IS NULL`; zero rows affected
	// maps to shared.ErrAlreadyUsed.
	MarkReconciled(ctx context.Context, token string, usedAt time.Time, printerName string) error

	// DeleteExpiredBefore garbage-collects offline tokens past retention
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AuditRepository is the append-only print audit log
type AuditRepository interface {
	// Append writes an audit entry; entries are never updated or deleted
	Append(ctx context.Context, entry *AuditEntry) error

	// FindForOwner lists audit entries for an owner, newest first
	FindForOwner(ctx context.Context, ownerID uuid.UUID, filter shared.Filter) ([]AuditEntry, error)
}
