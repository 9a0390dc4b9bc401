package rasterizer

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/printpass/backend/internal/domain/render"
	"github.com/printpass/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

const defaultChromeTimeout = 30 * time.Second

// ChromedpRasterizer renders page layouts to PDF via the Chrome DevTools
// Protocol. The paper size is taken from the layout, and margins are zero:
// the layout is the page.
type ChromedpRasterizer struct {
	cfg         config.RasterizerConfig
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromedpRasterizer creates a chromedp-based page rasterizer
func NewChromedpRasterizer(cfg config.RasterizerConfig, logger *zap.Logger) (*ChromedpRasterizer, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultChromeTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &ChromedpRasterizer{
		cfg:    cfg,
		logger: logger,
	}
	r.initAllocator()
	return r, nil
}

func (r *ChromedpRasterizer) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", r.cfg.DisableGPU),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("font-render-hinting", "none"),
	)

	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if r.cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.cfg.RemoteURL)
	} else {
		r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}
}

// RasterizePage renders the layout to a single-page PDF
func (r *ChromedpRasterizer) RasterizePage(ctx context.Context, layout *render.PageLayout) (*Result, error) {
	if layout == nil {
		return nil, NewRasterizationError(ErrCodeInvalidLayout, "page layout is nil", nil)
	}
	if err := layout.Validate(); err != nil {
		return nil, NewRasterizationError(ErrCodeInvalidLayout, "invalid page layout", err)
	}

	start := time.Now()

	browserCtx, browserCancel := chromedp.NewContext(r.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			r.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
	defer browserCancel()

	// The browser context descends from the allocator, not from the caller,
	// so the timeout has to be applied here to bound the Chrome call. Caller
	// cancellation is propagated into the run as well.
	runCtx, cancel := context.WithTimeout(browserCtx, r.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	html := BuildPageHTML(layout)

	var pdfData []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, html).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			data, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(mmToInches(layout.WidthMM)).
				WithPaperHeight(mmToInches(layout.HeightMM)).
				WithMarginTop(0).
				WithMarginRight(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithScale(1.0).
				Do(ctx)
			if err != nil {
				return err
			}
			pdfData = data
			return nil
		}),
	)

	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return nil, NewRasterizationError(ErrCodeTimeout,
				fmt.Sprintf("page rasterization timed out after %v", r.cfg.Timeout), err)
		}
		r.logger.Error("chromedp rasterization failed", zap.Error(err))
		return nil, NewRasterizationError(ErrCodeFailed, "chromedp execution failed", err)
	}

	if len(pdfData) == 0 {
		return nil, NewRasterizationError(ErrCodeFailed, "generated PDF is empty", nil)
	}

	r.logger.Debug("page rasterized",
		zap.Int("bytes", len(pdfData)),
		zap.Duration("duration", time.Since(start)))

	return &Result{
		PDFData:        pdfData,
		RenderDuration: time.Since(start),
	}, nil
}

// Close releases resources held by the rasterizer
func (r *ChromedpRasterizer) Close() error {
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}

// mmToInches converts millimeters to inches (Chrome expects inches)
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

// Ensure ChromedpRasterizer implements PageRasterizer
var _ PageRasterizer = (*ChromedpRasterizer)(nil)
