package pwdriver

import (
	"context"
	"fmt"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
)

var (
	_ api.Browser        = &Browser{}
	_ api.BrowserContext = &BrowserContext{}
	_ api.Page           = &Page{}
)

// Browser is a browser launched by the playwright driver.
type Browser struct {
	browser playwright.Browser
	logger  *log.Logger
}

// NewContext creates a new isolated browser context.
func (b *Browser) NewContext(ctx context.Context) (api.BrowserContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vp := api.DefaultViewport()
	bc, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: int(vp.Width), Height: int(vp.Height)},
	})
	if err != nil {
		return nil, fmt.Errorf("creating a new browser context: %w", mapError(err))
	}

	return &BrowserContext{context: bc, logger: b.logger}, nil
}

// Close closes the browser and its process.
func (b *Browser) Close(_ context.Context) error {
	if err := b.browser.Close(); err != nil {
		return fmt.Errorf("closing browser: %w", err)
	}
	return nil
}

// Pid is unknown for browsers started by the driver.
func (b *Browser) Pid() int {
	return 0
}

// Version returns the browser version.
func (b *Browser) Version() string {
	return b.browser.Version()
}

// BrowserContext wraps a playwright browser context.
type BrowserContext struct {
	context playwright.BrowserContext
	logger  *log.Logger
}

// NewPage opens a new blank page.
func (c *BrowserContext) NewPage(ctx context.Context) (api.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := c.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("creating a new page: %w", mapError(err))
	}

	return &Page{page: p, logger: c.logger}, nil
}

// Close closes the context and its pages.
func (c *BrowserContext) Close(_ context.Context) error {
	if err := c.context.Close(); err != nil {
		return fmt.Errorf("closing browser context: %w", err)
	}
	return nil
}

// Page wraps a playwright page.
type Page struct {
	page   playwright.Page
	logger *log.Logger
}

// Goto navigates to url and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string) error {
	p.logger.Debugf("Page:Goto", "url:%q", url)

	opts := playwright.PageGotoOptions{WaitUntil: playwright.WaitUntilStateLoad}
	if ms, ok := timeoutMs(ctx, 0); ok {
		opts.Timeout = playwright.Float(ms)
	}
	if _, err := p.page.Goto(url, opts); err != nil {
		return mapError(err)
	}

	return nil
}

// WaitForSelector waits until an element matching selector is attached.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	opts := playwright.LocatorWaitForOptions{State: playwright.WaitForSelectorStateAttached}
	if ms, ok := timeoutMs(ctx, timeout); ok {
		opts.Timeout = playwright.Float(ms)
	}
	if err := p.page.Locator(selector).First().WaitFor(opts); err != nil {
		return fmt.Errorf("waiting for selector %q: %w", selector, mapError(err))
	}

	return nil
}

// Click clicks the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	var opts playwright.LocatorClickOptions
	if ms, ok := timeoutMs(ctx, 0); ok {
		opts.Timeout = playwright.Float(ms)
	}
	if err := p.page.Locator(selector).First().Click(opts); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, mapError(err))
	}

	return nil
}

// Fill sets the value of the first form field matching selector.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	var opts playwright.LocatorFillOptions
	if ms, ok := timeoutMs(ctx, 0); ok {
		opts.Timeout = playwright.Float(ms)
	}
	if err := p.page.Locator(selector).First().Fill(value, opts); err != nil {
		return fmt.Errorf("filling %q: %w", selector, mapError(err))
	}

	return nil
}

// TextContent returns the text content of the first element matching
// selector. Form fields report their current value instead.
func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	loc := p.page.Locator(selector).First()

	var eopts playwright.LocatorEvaluateOptions
	if ms, ok := timeoutMs(ctx, 0); ok {
		eopts.Timeout = playwright.Float(ms)
	}
	field, err := loc.Evaluate(formFieldExpr, nil, eopts)
	if err != nil {
		return "", fmt.Errorf("getting text of %q: %w", selector, mapError(err))
	}
	if isField, _ := field.(bool); isField {
		var opts playwright.LocatorInputValueOptions
		if ms, ok := timeoutMs(ctx, 0); ok {
			opts.Timeout = playwright.Float(ms)
		}
		value, err := loc.InputValue(opts)
		if err != nil {
			return "", fmt.Errorf("getting value of %q: %w", selector, mapError(err))
		}
		return value, nil
	}

	var opts playwright.LocatorTextContentOptions
	if ms, ok := timeoutMs(ctx, 0); ok {
		opts.Timeout = playwright.Float(ms)
	}
	text, err := loc.TextContent(opts)
	if err != nil {
		return "", fmt.Errorf("getting text of %q: %w", selector, mapError(err))
	}

	return text, nil
}

// formFieldExpr reports whether an element holds its text in a value.
const formFieldExpr = `el => ["INPUT", "TEXTAREA", "SELECT"].includes(el.nodeName)`

// Screenshot captures a PNG of the viewport or of the whole page.
func (p *Page) Screenshot(ctx context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	so := playwright.PageScreenshotOptions{Type: playwright.ScreenshotTypePng}
	if opts != nil {
		so.FullPage = playwright.Bool(opts.FullPage)
	}
	if ms, ok := timeoutMs(ctx, 0); ok {
		so.Timeout = playwright.Float(ms)
	}
	buf, err := p.page.Screenshot(so)
	if err != nil {
		return nil, fmt.Errorf("taking screenshot: %w", mapError(err))
	}

	return buf, nil
}

// URL returns the page's current URL.
func (p *Page) URL() string {
	return p.page.URL()
}
