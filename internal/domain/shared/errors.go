package shared

import "fmt"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound        = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists   = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput    = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState    = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
	ErrQuotaExceeded   = NewDomainError("QUOTA_EXCEEDED", "No prints remain on this ledger entry")
	ErrAlreadyUsed     = NewDomainError("ALREADY_USED", "Token has already been consumed")
	ErrAlreadyInFlight = NewDomainError("ALREADY_IN_FLIGHT", "An unredeemed token is already outstanding")
	ErrExpired         = NewDomainError("EXPIRED", "Token has expired")
	ErrIncomplete      = NewDomainError("INCOMPLETE", "Job is missing page artifacts")
	ErrOfflineDisabled = NewDomainError("OFFLINE_DISABLED", "Offline redemption is not enabled")
)

// UpstreamError wraps a failure from an external collaborator (object store,
// queue, rasterizer) with enough context for the caller to retry.
type UpstreamError struct {
	Op  string // logical operation, e.g. "storage.put", "queue.enqueue"
	Err error
}

// Error implements the error interface
func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream failure in %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// NewUpstreamError creates a new UpstreamError
func NewUpstreamError(op string, err error) *UpstreamError {
	return &UpstreamError{Op: op, Err: err}
}
