// Package composer assembles rasterized page PDFs into one output document.
package composer

import (
	"context"
)

// DocumentComposer merges single-page PDFs, in order, into one document
type DocumentComposer interface {
	// Merge concatenates the given page PDFs into a single PDF. The input
	// order is the page order of the output.
	Merge(ctx context.Context, pages [][]byte) ([]byte, error)
}

// ComposeError represents an error during document composition
type ComposeError struct {
	Message string
	Cause   error
}

func (e *ComposeError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *ComposeError) Unwrap() error {
	return e.Cause
}

// NewComposeError creates a new ComposeError
func NewComposeError(message string, cause error) *ComposeError {
	return &ComposeError{Message: message, Cause: cause}
}
