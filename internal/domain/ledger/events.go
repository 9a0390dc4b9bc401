package ledger

import (
	"github.com/google/uuid"
	"github.com/printpass/backend/internal/domain/shared"
)

// Aggregate type constants
const (
	AggregateTypeEntry = "LedgerEntry"
)

// Event type constants
const (
	EventTypeEntryCreated   = "LedgerEntryCreated"
	EventTypeEntryRefreshed = "LedgerEntryRefreshed"
	EventTypeEntryExhausted = "LedgerEntryExhausted"
)

// EntryCreatedEvent is published when a new ledger entry is materialized
type EntryCreatedEvent struct {
	shared.BaseDomainEvent
	EntryID       uuid.UUID `json:"entry_id"`
	OwnerID       uuid.UUID `json:"owner_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	AssignedQuota int       `json:"assigned_quota"`
}

// NewEntryCreatedEvent creates a new EntryCreatedEvent
func NewEntryCreatedEvent(entry *Entry) *EntryCreatedEvent {
	return &EntryCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryCreated, entry.ID, AggregateTypeEntry),
		EntryID:         entry.ID,
		OwnerID:         entry.OwnerID,
		DocumentID:      entry.DocumentID,
		AssignedQuota:   entry.AssignedQuota,
	}
}

// EntryRefreshedEvent is published when an entry is reset with a fresh quota
type EntryRefreshedEvent struct {
	shared.BaseDomainEvent
	EntryID       uuid.UUID `json:"entry_id"`
	AssignedQuota int       `json:"assigned_quota"`
}

// NewEntryRefreshedEvent creates a new EntryRefreshedEvent
func NewEntryRefreshedEvent(entry *Entry) *EntryRefreshedEvent {
	return &EntryRefreshedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryRefreshed, entry.ID, AggregateTypeEntry),
		EntryID:         entry.ID,
		AssignedQuota:   entry.AssignedQuota,
	}
}

// EntryExhaustedEvent is published when the last print on an entry is consumed
type EntryExhaustedEvent struct {
	shared.BaseDomainEvent
	EntryID    uuid.UUID `json:"entry_id"`
	OwnerID    uuid.UUID `json:"owner_id"`
	DocumentID uuid.UUID `json:"document_id"`
	UsedPrints int       `json:"used_prints"`
}

// NewEntryExhaustedEvent creates a new EntryExhaustedEvent
func NewEntryExhaustedEvent(entry *Entry) *EntryExhaustedEvent {
	return &EntryExhaustedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeEntryExhausted, entry.ID, AggregateTypeEntry),
		EntryID:         entry.ID,
		OwnerID:         entry.OwnerID,
		DocumentID:      entry.DocumentID,
		UsedPrints:      entry.UsedPrints,
	}
}
