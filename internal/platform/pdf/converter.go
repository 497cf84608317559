// Package pdf renders certificate HTML to A4 PDF through headless Chrome.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Josebert2001/ibeno-origin-scribe/internal/platform/config"
)

const defaultTimeout = 30 * time.Second

// A4 in inches.
const (
	paperWidth  = 8.27
	paperHeight = 11.69
)

var (
	// ErrDisabled is returned when PDF rendering is switched off.
	ErrDisabled = errors.New("pdf: converter disabled")
	// ErrEmptyDocument is returned when there is nothing to render.
	ErrEmptyDocument = errors.New("pdf: document is empty")
)

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Render(ctx context.Context, html string) ([]byte, error)
}

// ChromeConverter drives a fresh headless Chrome per render.
type ChromeConverter struct {
	enabled    bool
	chromePath string
	timeout    time.Duration
}

// NewChromeConverter builds a converter from configuration.
func NewChromeConverter(cfg config.PDFConfig) *ChromeConverter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &ChromeConverter{
		enabled:    cfg.Enabled,
		chromePath: strings.TrimSpace(cfg.ChromePath),
		timeout:    timeout,
	}
}

// Enabled reports whether renders will be attempted.
func (c *ChromeConverter) Enabled() bool {
	return c != nil && c.enabled
}

// Render loads the document into a blank page and prints it.
func (c *ChromeConverter) Render(ctx context.Context, html string) ([]byte, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if strings.TrimSpace(html) == "" {
		return nil, ErrEmptyDocument
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	defer cancelAlloc()
	chromeCtx, cancelChrome := chromedp.NewContext(allocCtx)
	defer cancelChrome()

	var out []byte
	err := chromedp.Run(chromeCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			out, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(paperWidth).
				WithPaperHeight(paperHeight).
				WithMarginTop(0).
				WithMarginBottom(0).
				WithMarginLeft(0).
				WithMarginRight(0).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrEmptyDocument
	}
	return out, nil
}

func (c *ChromeConverter) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.chromePath != "" {
		opts = append(opts, chromedp.ExecPath(c.chromePath))
	}
	return opts
}
