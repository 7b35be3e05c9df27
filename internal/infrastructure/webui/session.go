package webui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
)

// BrowserSession is the chromedp-backed PageDriver: one headless browser tab,
// exclusively owned by the batch's web phase. The tab's context lives for the
// whole session; callers cancel individual operations through their own ctx.
type BrowserSession struct {
	tabCtx      context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
}

// NewBrowserSession launches the browser. Close must be called on every exit
// path; leaking an authenticated browser context is not acceptable.
func NewBrowserSession(ctx context.Context, headless bool) (*BrowserSession, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)

	// start the browser eagerly so a missing binary fails Login, not the
	// first form fill
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &BrowserSession{tabCtx: tabCtx, cancelTab: cancelTab, cancelAlloc: cancelAlloc}, nil
}

func (s *BrowserSession) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.tabCtx, actions...)
}

func (s *BrowserSession) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, chromedp.Navigate(url))
}

func (s *BrowserSession) WaitVisible(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

func (s *BrowserSession) Fill(ctx context.Context, selector, value string) error {
	return s.run(ctx,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *BrowserSession) SelectOption(ctx context.Context, selector, value string) error {
	return s.run(ctx, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// SetValueByScript writes through the DOM directly, for inputs with pickers
// that swallow synthetic keystrokes (date fields).
func (s *BrowserSession) SetValueByScript(ctx context.Context, elementID, value string) error {
	js := fmt.Sprintf("document.getElementById(%q).value = %q", elementID, value)
	return s.run(ctx, chromedp.Evaluate(js, nil))
}

func (s *BrowserSession) Check(ctx context.Context, selector string) error {
	js := fmt.Sprintf("document.querySelector(%q).checked = true", selector)
	return s.run(ctx, chromedp.Evaluate(js, nil))
}

func (s *BrowserSession) Click(ctx context.Context, selector string) error {
	return s.run(ctx, chromedp.Click(selector, chromedp.ByQuery))
}

// ClickByScript bypasses visibility checks for buttons below the fold.
func (s *BrowserSession) ClickByScript(ctx context.Context, selector string) error {
	js := fmt.Sprintf("document.querySelector(%q).click()", selector)
	return s.run(ctx, chromedp.Evaluate(js, nil))
}

func (s *BrowserSession) Location(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

func (s *BrowserSession) WaitLocationChange(ctx context.Context, before string, wait time.Duration) (string, bool, error) {
	deadline := time.Now().Add(wait)
	for {
		loc, err := s.Location(ctx)
		if err != nil {
			return "", false, err
		}
		if loc != before {
			return loc, true, nil
		}
		if time.Now().After(deadline) {
			return loc, false, nil
		}

		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (s *BrowserSession) IsVisible(ctx context.Context, selector string) (bool, error) {
	js := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		return el !== null && el.offsetParent !== null;
	})()`, selector)
	var visible bool
	err := s.run(ctx, chromedp.Evaluate(js, &visible))
	return visible, err
}

func (s *BrowserSession) Screenshot(ctx context.Context, path string) error {
	var buf []byte
	if err := s.run(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}

func (s *BrowserSession) Close(ctx context.Context) error {
	_ = ctx
	s.cancelTab()
	s.cancelAlloc()
	return nil
}
