// Package browser wraps a headless Chrome session used to render
// pages whose content only exists after client-side scripts run.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// blockedPatterns keeps images, styles and fonts off the wire. The
// extractors only read DOM text and attributes.
var blockedPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.css", "*.woff", "*.woff2", "*.ttf", "*.otf",
}

// Options configure the shared Chrome session.
type Options struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
}

// Renderer owns one Chrome process and opens a tab per Render call.
type Renderer struct {
	browserCtx   context.Context
	cancelAlloc  context.CancelFunc
	cancelBrowse context.CancelFunc
	timeout      time.Duration
	log          *zap.Logger
}

// New launches Chrome. Callers must Close the renderer when done.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Renderer, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowse := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowse()
		cancelAlloc()
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Renderer{
		browserCtx:   browserCtx,
		cancelAlloc:  cancelAlloc,
		cancelBrowse: cancelBrowse,
		timeout:      timeout,
		log:          log,
	}, nil
}

// Close shuts the browser down.
func (r *Renderer) Close() {
	r.cancelBrowse()
	r.cancelAlloc()
}

// Render navigates to url in a fresh tab and returns the document
// HTML once the body is ready.
func (r *Renderer) Render(ctx context.Context, url string) ([]byte, error) {
	return r.render(ctx, url, "body")
}

// RenderWait is Render with an explicit selector to wait for, for
// pages where the interesting content arrives after initial load.
func (r *Renderer) RenderWait(ctx context.Context, url, selector string) ([]byte, error) {
	return r.render(ctx, url, selector)
}

func (r *Renderer) render(ctx context.Context, url, selector string) ([]byte, error) {
	tab, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	tabCtx, cancel := context.WithTimeout(tab, r.timeout)
	defer cancel()

	// Respect caller cancellation without waiting out the tab timeout.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			cancelTab()
		case <-done:
		}
	}()

	start := time.Now()
	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetBlockedURLS(blockedPatterns),
		chromedp.Navigate(url),
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", url, err)
	}

	r.log.Debug("page rendered",
		zap.String("url", url),
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("bytes", len(html)))
	return []byte(html), nil
}
