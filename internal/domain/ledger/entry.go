// Package ledger owns the print-authorization state: ledger entries tracking
// quota consumption per (owner, document) pair, the single-use tokens minted
// against them, and the immutable audit trail of every redemption attempt.
package ledger

import (
	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// Entry is the quota record for one (owner, document) pair. It is the
// authoritative source of how many prints remain. UsedPrints only moves
// forward, and only through the repository's guarded compare-and-increment;
// the aggregate methods here express intent and validate state for the
// single-process paths (creation, refresh).
type Entry struct {
	shared.OwnedAggregateRoot
	DocumentID      uuid.UUID
	AssignedQuota   int
	UsedPrints      int
	Status          EntryStatus
	RedemptionToken *string // opaque redemption identifier, present only while ACTIVE
}

// NewEntry creates a new active ledger entry with a fresh redemption identifier
func NewEntry(ownerID, documentID uuid.UUID, assignedQuota int) (*Entry, error) {
	if ownerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_OWNER", "Owner ID cannot be empty")
	}
	if documentID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_DOCUMENT", "Document ID cannot be empty")
	}
	if assignedQuota < 0 {
		return nil, shared.NewDomainError("INVALID_QUOTA", "Assigned quota cannot be negative")
	}

	redemption := uuid.NewString()
	entry := &Entry{
		OwnedAggregateRoot: shared.NewOwnedAggregateRoot(ownerID),
		DocumentID:         documentID,
		AssignedQuota:      assignedQuota,
		UsedPrints:         0,
		Status:             EntryStatusActive,
		RedemptionToken:    &redemption,
	}
	if assignedQuota == 0 {
		// A zero-quota entry is born exhausted.
		entry.Status = EntryStatusExhausted
		entry.RedemptionToken = nil
	}

	entry.AddDomainEvent(NewEntryCreatedEvent(entry))
	return entry, nil
}

// Remaining returns the number of prints left on this entry
func (e *Entry) Remaining() int {
	remaining := e.AssignedQuota - e.UsedPrints
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsActive returns true if the entry can still issue prints
func (e *Entry) IsActive() bool {
	return e.Status == EntryStatusActive
}

// IsExhausted returns true if the quota is fully consumed
func (e *Entry) IsExhausted() bool {
	return e.Status == EntryStatusExhausted
}

// Refresh resets the entry for a re-issued document: full quota, zero usage,
// a new redemption identifier. Used by the merge coordinator when the same
// (owner, document) pair is materialized again.
func (e *Entry) Refresh(assignedQuota int) error {
	if assignedQuota < 0 {
		return shared.NewDomainError("INVALID_QUOTA", "Assigned quota cannot be negative")
	}

	redemption := uuid.NewString()
	e.AssignedQuota = assignedQuota
	e.UsedPrints = 0
	e.Status = EntryStatusActive
	e.RedemptionToken = &redemption
	if assignedQuota == 0 {
		e.Status = EntryStatusExhausted
		e.RedemptionToken = nil
	}
	e.Touch()
	e.IncrementVersion()

	e.AddDomainEvent(NewEntryRefreshedEvent(e))
	return nil
}

// CheckInvariants validates the entry's internal consistency. Exposed for
// tests; production code relies on the guarded repository operations.
func (e *Entry) CheckInvariants() error {
	if e.UsedPrints > e.AssignedQuota {
		return shared.NewDomainError("INVARIANT_VIOLATION", "Used prints exceed assigned quota")
	}
	if e.Status == EntryStatusExhausted {
		if e.UsedPrints != e.AssignedQuota {
			return shared.NewDomainError("INVARIANT_VIOLATION", "Exhausted entry with prints remaining")
		}
		if e.RedemptionToken != nil {
			return shared.NewDomainError("INVARIANT_VIOLATION", "Exhausted entry retains a redemption token")
		}
	}
	return nil
}
