package rasterizer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/printpass/backend/internal/domain/render"
)

// Ensure StubRasterizer implements PageRasterizer
var _ PageRasterizer = (*StubRasterizer)(nil)

// StubRasterizer produces a minimal but structurally valid single-page PDF
// without a browser. Used by tests and local development.
type StubRasterizer struct {
	calls atomic.Int64

	// FailNext makes the next N calls fail, for exercising retry paths
	FailNext atomic.Int64
}

// NewStubRasterizer creates a new StubRasterizer
func NewStubRasterizer() *StubRasterizer {
	return &StubRasterizer{}
}

// RasterizePage returns a tiny one-page PDF
func (s *StubRasterizer) RasterizePage(ctx context.Context, layout *render.PageLayout) (*Result, error) {
	if layout == nil {
		return nil, NewRasterizationError(ErrCodeInvalidLayout, "page layout is nil", nil)
	}
	if err := layout.Validate(); err != nil {
		return nil, NewRasterizationError(ErrCodeInvalidLayout, "invalid page layout", err)
	}
	if s.FailNext.Load() > 0 {
		s.FailNext.Add(-1)
		return nil, NewRasterizationError(ErrCodeFailed, "stub rasterizer forced failure", nil)
	}

	s.calls.Add(1)
	return &Result{
		PDFData:        minimalPDF(layout.WidthMM, layout.HeightMM),
		RenderDuration: time.Millisecond,
	}, nil
}

// Close is a no-op
func (s *StubRasterizer) Close() error {
	return nil
}

// Calls returns how many pages were rasterized
func (s *StubRasterizer) Calls() int64 {
	return s.calls.Load()
}

// minimalPDF emits a one-page PDF with the given media box in millimeters.
// 1 mm = 72/25.4 PDF points.
func minimalPDF(widthMM, heightMM float64) []byte {
	w := widthMM * 72 / 25.4
	h := heightMM * 72 / 25.4
	body := fmt.Sprintf(`%%PDF-1.4
1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj
2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj
3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 %.2f %.2f]>>endobj
trailer<</Root 1 0 R>>
%%%%EOF
`, w, h)
	return []byte(body)
}
