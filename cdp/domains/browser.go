// Package domains wraps the CDP domains used to drive a page.
package domains

import (
	"context"
	"fmt"

	cdpb "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
)

// Browser exposes the CDP Browser domain actions.
type Browser interface {
	Close(ctx context.Context) error
	GetVersion(ctx context.Context) (product string, err error)
}

var _ Browser = &browser{}

type browser struct {
	exec cdp.Executor
}

// NewBrowser returns a new CDP Browser domain wrapper.
func NewBrowser(exec cdp.Executor) Browser {
	return &browser{exec}
}

func (b *browser) Close(ctx context.Context) error {
	action := cdpb.Close()
	if err := action.Do(cdp.WithExecutor(ctx, b.exec)); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// GetVersion returns the browser product, e.g. "HeadlessChrome/96.0.4664.45".
func (b *browser) GetVersion(ctx context.Context) (string, error) {
	action := cdpb.GetVersion()
	_, product, _, _, _, err := action.Do(cdp.WithExecutor(ctx, b.exec))
	if err != nil {
		return "", fmt.Errorf("getting browser version: %w", err)
	}
	return product, nil
}
