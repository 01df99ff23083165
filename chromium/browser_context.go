package chromium

import (
	"context"
	"fmt"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/cdp"
	"github.com/pagebatch/pagebatch/log"
)

var _ api.BrowserContext = &BrowserContext{}

// BrowserContext is an isolated browser context holding pages.
type BrowserContext struct {
	id      string
	browser *Browser
	logger  *log.Logger
}

// NewPage opens a blank tab in the context and attaches to it.
func (c *BrowserContext) NewPage(ctx context.Context) (api.Page, error) {
	client := c.browser.client

	tid, err := client.Target.CreateTarget(ctx, "about:blank", c.id)
	if err != nil {
		return nil, fmt.Errorf("creating a new blank page: %w", err)
	}
	sid, err := client.Target.AttachToTarget(ctx, tid)
	if err != nil {
		return nil, fmt.Errorf("creating a new blank page: %w", err)
	}
	c.logger.Debugf("BrowserContext:NewPage", "bctxid:%v tid:%v sid:%v", c.id, tid, sid)

	p := newPage(client, tid, sid, c.browser.viewport, c.browser.opts.SlowMo, c.logger)
	sctx := cdp.WithSessionID(ctx, sid)
	if err := client.Page.Enable(sctx); err != nil {
		return nil, fmt.Errorf("creating a new blank page: %w", err)
	}
	if err := client.Emulation.SetViewport(sctx, p.viewport.Width, p.viewport.Height); err != nil {
		return nil, fmt.Errorf("creating a new blank page: %w", err)
	}

	return p, nil
}

// Close disposes the context along with its pages.
func (c *BrowserContext) Close(ctx context.Context) error {
	c.logger.Debugf("BrowserContext:Close", "bctxid:%v", c.id)
	return c.browser.client.Target.DisposeBrowserContext(ctx, c.id)
}
