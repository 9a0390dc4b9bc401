package composer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"go.uber.org/zap"
)

// Ensure PdfcpuComposer implements DocumentComposer
var _ DocumentComposer = (*PdfcpuComposer)(nil)

// PdfcpuComposer merges page PDFs with pdfcpu, entirely in memory
type PdfcpuComposer struct {
	conf   *model.Configuration
	logger *zap.Logger
}

// NewPdfcpuComposer creates a new PdfcpuComposer
func NewPdfcpuComposer(logger *zap.Logger) *PdfcpuComposer {
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &PdfcpuComposer{
		conf:   conf,
		logger: logger,
	}
}

// Merge concatenates the page PDFs into a single document
func (c *PdfcpuComposer) Merge(ctx context.Context, pages [][]byte) ([]byte, error) {
	if len(pages) == 0 {
		return nil, NewComposeError("no pages to merge", nil)
	}
	for i, page := range pages {
		if len(page) == 0 {
			return nil, NewComposeError(fmt.Sprintf("page %d is empty", i), nil)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()

	readers := make([]io.ReadSeeker, len(pages))
	for i, page := range pages {
		readers[i] = bytes.NewReader(page)
	}

	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, c.conf); err != nil {
		return nil, NewComposeError("pdfcpu merge failed", err)
	}

	c.logger.Debug("pages merged",
		zap.Int("pages", len(pages)),
		zap.Int("bytes", out.Len()),
		zap.Duration("duration", time.Since(start)))

	return out.Bytes(), nil
}
