package dto

import "net/http"

// Error code constants exposed on the wire.
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
	// ErrCodeUpstream is used when an external collaborator failed
	ErrCodeUpstream = "ERR_UPSTREAM"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when the owner identity is missing or invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks permission
	ErrCodeForbidden = "ERR_FORBIDDEN"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
)

// Print-authorization error codes
const (
	// ErrCodeQuotaExceeded is used when the ledger entry has no prints left
	ErrCodeQuotaExceeded = "ERR_QUOTA_EXCEEDED"
	// ErrCodeAlreadyUsed is used when a single-use token was already redeemed
	ErrCodeAlreadyUsed = "ERR_ALREADY_USED"
	// ErrCodeAlreadyInFlight is used when an outstanding token exists
	ErrCodeAlreadyInFlight = "ERR_ALREADY_IN_FLIGHT"
	// ErrCodeExpired is used when a token's exposure window has passed
	ErrCodeExpired = "ERR_EXPIRED"
	// ErrCodeMachineMismatch is used when an offline token is presented from
	// a machine other than the one it is bound to
	ErrCodeMachineMismatch = "ERR_MACHINE_MISMATCH"
	// ErrCodeOutOfWindow is used when a reconciled print falls outside the
	// token validity window
	ErrCodeOutOfWindow = "ERR_OUT_OF_WINDOW"
	// ErrCodeOfflineDisabled is used when the offline capability is off
	ErrCodeOfflineDisabled = "ERR_OFFLINE_DISABLED"
)

// Pipeline error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodeIncomplete is used when a job is missing page artifacts
	ErrCodeIncomplete = "ERR_INCOMPLETE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,
	ErrCodeUpstream: http.StatusBadGateway,

	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeValidation:   http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound: http.StatusNotFound,
	ErrCodeConflict: http.StatusConflict,

	ErrCodeQuotaExceeded:   http.StatusUnprocessableEntity,
	ErrCodeAlreadyUsed:     http.StatusConflict,
	ErrCodeAlreadyInFlight: http.StatusConflict,
	ErrCodeExpired:         http.StatusGone,
	ErrCodeMachineMismatch: http.StatusForbidden,
	ErrCodeOutOfWindow:     http.StatusUnprocessableEntity,
	ErrCodeOfflineDisabled: http.StatusNotFound,

	ErrCodeInvalidState: http.StatusUnprocessableEntity,
	ErrCodeIncomplete:   http.StatusUnprocessableEntity,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Returns 500 Internal Server Error if the error code is not found.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainErrorCodeMapping maps domain error codes to wire codes
var domainErrorCodeMapping = map[string]string{
	"NOT_FOUND":         ErrCodeNotFound,
	"QUOTA_EXCEEDED":    ErrCodeQuotaExceeded,
	"ALREADY_USED":      ErrCodeAlreadyUsed,
	"ALREADY_IN_FLIGHT": ErrCodeAlreadyInFlight,
	"EXPIRED":           ErrCodeExpired,
	"MACHINE_MISMATCH":  ErrCodeMachineMismatch,
	"OUT_OF_WINDOW":     ErrCodeOutOfWindow,
	"OFFLINE_DISABLED":  ErrCodeOfflineDisabled,
	"INCOMPLETE":        ErrCodeIncomplete,
	"INVALID_INPUT":     ErrCodeInvalidInput,
	"INVALID_STATE":     ErrCodeInvalidState,
	"INVALID_OWNER":     ErrCodeInvalidInput,
	"INVALID_QUOTA":     ErrCodeInvalidInput,
	"EMPTY_LAYOUT":      ErrCodeInvalidInput,
	"INVALID_LAYOUT":    ErrCodeInvalidInput,
	"INVALID_ELEMENT":   ErrCodeInvalidInput,
	"UNAUTHORIZED":      ErrCodeUnauthorized,
	"FORBIDDEN":         ErrCodeForbidden,
}

// NormalizeErrorCode converts a domain error code to the wire format.
// Unknown codes pass through unchanged and map to 500 downstream.
func NormalizeErrorCode(code string) string {
	if wireCode, ok := domainErrorCodeMapping[code]; ok {
		return wireCode
	}
	return code
}
