package ledger

// EntryStatus represents the status of a ledger entry
type EntryStatus string

const (
	EntryStatusActive    EntryStatus = "ACTIVE"    // prints remain
	EntryStatusExhausted EntryStatus = "EXHAUSTED" // quota fully consumed, terminal
)

// IsValid checks if the EntryStatus is a valid value
func (s EntryStatus) IsValid() bool {
	switch s {
	case EntryStatusActive, EntryStatusExhausted:
		return true
	}
	return false
}

// String returns the string representation of EntryStatus
func (s EntryStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are possible.
// Exhaustion is irreversible; more prints require a new document and a new
// ledger entry.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusExhausted
}

// CanTransitionTo checks if the status can transition to the target status
func (s EntryStatus) CanTransitionTo(target EntryStatus) bool {
	switch s {
	case EntryStatusActive:
		return target == EntryStatusExhausted
	case EntryStatusExhausted:
		return false
	}
	return false
}

// AuditAction identifies the kind of event recorded in the print audit log
type AuditAction string

const (
	AuditTokenIssued       AuditAction = "TOKEN_ISSUED"
	AuditContentFetched    AuditAction = "CONTENT_FETCHED"
	AuditPrintConfirmed    AuditAction = "PRINT_CONFIRMED"
	AuditConfirmRejected   AuditAction = "CONFIRM_REJECTED"
	AuditOfflinePrepared   AuditAction = "OFFLINE_PREPARED"
	AuditOfflineReconciled AuditAction = "OFFLINE_RECONCILED"
	AuditOfflineRejected   AuditAction = "OFFLINE_REJECTED"
	// AuditOfflineOrphaned records a charged print whose offline token was
	// never persisted; the discrepancy is resolved by hand, not re-credited.
	AuditOfflineOrphaned AuditAction = "OFFLINE_CHARGE_ORPHANED"
)

// IsValid checks if the AuditAction is a valid value
func (a AuditAction) IsValid() bool {
	switch a {
	case AuditTokenIssued, AuditContentFetched, AuditPrintConfirmed, AuditConfirmRejected,
		AuditOfflinePrepared, AuditOfflineReconciled, AuditOfflineRejected, AuditOfflineOrphaned:
		return true
	}
	return false
}

// String returns the string representation of AuditAction
func (a AuditAction) String() string {
	return string(a)
}
