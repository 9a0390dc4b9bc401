// Package rasterizer turns one declarative page layout into a single-page
// PDF. Each page of a render job is rasterized independently, so the
// contract is deliberately one-page-in, one-page-out.
package rasterizer

import (
	"context"
	"time"

	"github.com/printpass/backend/internal/domain/render"
)

// Result contains the output of rasterizing one page
type Result struct {
	// PDFData is the raw single-page PDF content
	PDFData []byte
	// RenderDuration is how long the rasterization took
	RenderDuration time.Duration
}

// PageRasterizer renders one page layout to a single-page PDF
type PageRasterizer interface {
	// RasterizePage renders the layout to PDF bytes
	RasterizePage(ctx context.Context, layout *render.PageLayout) (*Result, error)
	// Close releases any resources held by the rasterizer
	Close() error
}

// RasterizationError represents an error during page rasterization
type RasterizationError struct {
	Code    string
	Message string
	Cause   error
}

func (e *RasterizationError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *RasterizationError) Unwrap() error {
	return e.Cause
}

// Error codes for rasterization failures
const (
	ErrCodeTimeout       = "RASTERIZE_TIMEOUT"
	ErrCodeFailed        = "RASTERIZE_FAILED"
	ErrCodeInvalidLayout = "INVALID_LAYOUT"
)

// NewRasterizationError creates a new RasterizationError
func NewRasterizationError(code, message string, cause error) *RasterizationError {
	return &RasterizationError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}
