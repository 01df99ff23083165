package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpp "github.com/chromedp/cdproto/page"
)

// Page exposes the CDP Page domain actions.
type Page interface {
	CaptureScreenshot(ctx context.Context, clip *cdpp.Viewport) ([]byte, error)
	Enable(ctx context.Context) error
	Navigate(ctx context.Context, url string) (frameID string, err error)
}

var _ Page = &page{}

type page struct {
	exec cdp.Executor
}

// NewPage returns a new CDP Page domain wrapper.
func NewPage(exec cdp.Executor) Page {
	return &page{exec}
}

// CaptureScreenshot captures a PNG of the viewport, or of clip when it's
// given, including the parts beyond the viewport.
func (p *page) CaptureScreenshot(ctx context.Context, clip *cdpp.Viewport) ([]byte, error) {
	action := cdpp.CaptureScreenshot().WithFormat(cdpp.CaptureScreenshotFormatPng)
	if clip != nil {
		action = action.WithClip(clip).WithCaptureBeyondViewport(true)
	}
	buf, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}

	return buf, nil
}

func (p *page) Enable(ctx context.Context) error {
	action := cdpp.Enable()
	if err := action.Do(cdp.WithExecutor(ctx, p.exec)); err != nil {
		return fmt.Errorf("enabling page CDP domain: %w", err)
	}

	return nil
}

// Navigate navigates the main frame to url. A navigation the browser
// refuses, like an unresolvable host, is an error.
func (p *page) Navigate(ctx context.Context, url string) (string, error) {
	action := cdpp.Navigate(url)

	frameID, _, errorText, err := action.Do(cdp.WithExecutor(ctx, p.exec))
	if err != nil {
		return "", fmt.Errorf("navigating to %q: %w", url, err)
	}
	if errorText != "" {
		return "", fmt.Errorf("navigating to %q: %s", url, errorText)
	}

	return frameID.String(), nil
}
