// Package render prints invoice detail views to PDF with headless Chrome.
package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"billdesk/internal/logger"
)

// A4 in inches, as expected by Page.printToPDF.
const (
	a4Width  = 8.27
	a4Height = 11.69
)

// ChromeRenderer launches a fresh headless browser per render.
type ChromeRenderer struct {
	execPath string
	log      zerolog.Logger
}

// NewChromeRenderer creates a renderer. An empty execPath lets chromedp
// locate a local Chrome or Chromium.
func NewChromeRenderer(execPath string) *ChromeRenderer {
	return &ChromeRenderer{
		execPath: execPath,
		log:      logger.WithComponent("render"),
	}
}

// RenderPDF loads url, waits for the body and for the network to go idle
// (so data the view fetches after load is on the page), then prints the page as A4 with
// backgrounds. The browser is torn down when ctx ends.
func (r *ChromeRenderer) RenderPDF(ctx context.Context, url string) ([]byte, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
	)
	if r.execPath != "" {
		opts = append(opts, chromedp.ExecPath(r.execPath))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	r.log.Debug().Str("url", url).Msg("Rendering invoice view")

	idle := newIdleWatcher()
	chromedp.ListenTarget(browserCtx, idle.observe)

	var pdf []byte
	err := chromedp.Run(browserCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		idle.wait(),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(a4Width).
				WithPaperHeight(a4Height).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("render %s: %w", url, ctxErr)
		}
		return nil, fmt.Errorf("render %s: %w", url, err)
	}
	return pdf, nil
}

// idleWatcher tracks page lifecycle events of the current navigation.
type idleWatcher struct {
	mu    sync.Mutex
	armed bool
	done  bool
	idle  chan struct{}
}

func newIdleWatcher() *idleWatcher {
	return &idleWatcher{idle: make(chan struct{})}
}

// observe is a chromedp target listener. A navigation starts with "init";
// only a "networkIdle" seen after that counts.
func (w *idleWatcher) observe(ev interface{}) {
	e, ok := ev.(*page.EventLifecycleEvent)
	if !ok {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	switch e.Name {
	case "init":
		w.armed = true
	case "networkIdle":
		if w.armed && !w.done {
			w.done = true
			close(w.idle)
		}
	}
}

func (w *idleWatcher) wait() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		select {
		case <-w.idle:
			return nil
		case <-ctx.Done():
			return fmt.Errorf("waiting for network idle: %w", ctx.Err())
		}
	})
}
