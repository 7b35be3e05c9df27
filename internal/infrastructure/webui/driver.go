package webui

import (
	"context"
	"time"
)

// PageDriver abstracts the browser operations the provisioner needs, so the
// provisioning logic can be exercised against a simulated page in tests. The
// chromedp implementation lives in session.go.
type PageDriver interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	SetValueByScript(ctx context.Context, elementID, value string) error
	Check(ctx context.Context, selector string) error
	Click(ctx context.Context, selector string) error
	ClickByScript(ctx context.Context, selector string) error
	Location(ctx context.Context) (string, error)
	// WaitLocationChange blocks until the location differs from before or the
	// wait elapses; the second return reports whether it changed.
	WaitLocationChange(ctx context.Context, before string, wait time.Duration) (string, bool, error)
	IsVisible(ctx context.Context, selector string) (bool, error)
	Screenshot(ctx context.Context, path string) error
	Close(ctx context.Context) error
}
