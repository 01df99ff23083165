package chromium

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto"
	"github.com/mailru/easyjson"
	"github.com/mailru/easyjson/jlexer"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/cdp"
	"github.com/pagebatch/pagebatch/chromium/js"
	"github.com/pagebatch/pagebatch/log"
)

var _ api.Page = &Page{}

const selectorPollInterval = 100 * time.Millisecond

// Page is a tab attached over a flat CDP session.
type Page struct {
	client    *cdp.Client
	targetID  string
	sessionID string
	viewport  api.Viewport
	slowMo    time.Duration

	urlMu sync.RWMutex
	url   string

	logger *log.Logger
}

func newPage(
	client *cdp.Client, targetID, sessionID string, vp api.Viewport,
	slowMo time.Duration, logger *log.Logger,
) *Page {
	return &Page{
		client:    client,
		targetID:  targetID,
		sessionID: sessionID,
		viewport:  vp,
		slowMo:    slowMo,
		url:       "about:blank",
		logger:    logger,
	}
}

func (p *Page) sessionCtx(ctx context.Context) context.Context {
	return cdp.WithSessionID(ctx, p.sessionID)
}

// wait delays an input action by the slow motion duration.
func (p *Page) wait(ctx context.Context) error {
	if p.slowMo <= 0 {
		return nil
	}
	t := time.NewTimer(p.slowMo)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Page) evaluate(ctx context.Context, script string, args ...string) (easyjson.RawMessage, error) {
	return p.client.Runtime.Evaluate(p.sessionCtx(ctx), js.Call(script, args...))
}

// Goto navigates to url and waits for the load event.
func (p *Page) Goto(ctx context.Context, url string) error {
	p.logger.Debugf("Page:Goto", "sid:%v url:%q", p.sessionID, url)
	if err := p.wait(ctx); err != nil {
		return err
	}

	sctx := p.sessionCtx(ctx)
	loaded, unsubscribe := p.client.Subscribe(sctx, cdproto.EventPageLoadEventFired)
	defer unsubscribe()

	if _, err := p.client.Page.Navigate(sctx, url); err != nil {
		return timeoutErr(err)
	}
	select {
	case <-loaded:
	case <-p.client.Done():
		return fmt.Errorf("waiting for %q to load: %w", url, cdp.ErrClosed)
	case <-ctx.Done():
		return timeoutErr(fmt.Errorf("waiting for %q to load: %w", url, ctx.Err()))
	}

	p.urlMu.Lock()
	p.url = url
	p.urlMu.Unlock()

	return nil
}

// WaitForSelector polls the page until an element matches selector.
func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	wctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(selectorPollInterval)
	defer ticker.Stop()
	for {
		raw, err := p.evaluate(wctx, js.QuerySelectorScript, selector)
		if err == nil {
			if found, derr := decodeBool(raw); derr != nil {
				return fmt.Errorf("waiting for selector %q: %w", selector, derr)
			} else if found {
				return nil
			}
		} else if wctx.Err() == nil {
			return fmt.Errorf("waiting for selector %q: %w", selector, err)
		}

		select {
		case <-ticker.C:
		case <-wctx.Done():
			if ctx.Err() != nil {
				return fmt.Errorf("waiting for selector %q: %w", selector, ctx.Err())
			}
			return fmt.Errorf("waiting for selector %q: %w after %s", selector, api.ErrTimeout, timeout)
		}
	}
}

// Click clicks in the middle of the first element matching selector.
func (p *Page) Click(ctx context.Context, selector string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	raw, err := p.evaluate(ctx, js.ElementBoxScript, selector)
	if err != nil {
		return timeoutErr(fmt.Errorf("clicking %q: %w", selector, err))
	}
	var box rect
	if err := easyjson.Unmarshal(raw, &box); err != nil {
		return fmt.Errorf("clicking %q: %w", selector, err)
	}
	if box.null {
		return fmt.Errorf("clicking %q: element not found", selector)
	}
	if box.Width == 0 || box.Height == 0 {
		return fmt.Errorf("clicking %q: element is not visible", selector)
	}

	x, y := box.X+box.Width/2, box.Y+box.Height/2
	if err := p.client.Input.Click(p.sessionCtx(ctx), x, y); err != nil {
		return timeoutErr(fmt.Errorf("clicking %q: %w", selector, err))
	}

	return nil
}

// Fill sets the value of the form field matching selector.
func (p *Page) Fill(ctx context.Context, selector, value string) error {
	if err := p.wait(ctx); err != nil {
		return err
	}
	if _, err := p.evaluate(ctx, js.FillScript, selector, value); err != nil {
		return timeoutErr(fmt.Errorf("filling %q: %w", selector, err))
	}

	return nil
}

// TextContent returns the text content of the first element matching
// selector.
func (p *Page) TextContent(ctx context.Context, selector string) (string, error) {
	raw, err := p.evaluate(ctx, js.TextContentScript, selector)
	if err != nil {
		return "", timeoutErr(fmt.Errorf("getting text of %q: %w", selector, err))
	}
	text, err := decodeString(raw)
	if err != nil {
		return "", fmt.Errorf("getting text of %q: %w", selector, err)
	}

	return text, nil
}

// Screenshot captures the viewport, or the whole page with FullPage.
func (p *Page) Screenshot(ctx context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	if opts == nil {
		opts = &api.ScreenshotOptions{}
	}
	s := newScreenshotter(p)
	buf, err := s.screenshot(p.sessionCtx(ctx), opts)
	if err != nil {
		return nil, timeoutErr(err)
	}

	return buf, nil
}

// URL returns the URL the page was last navigated to.
func (p *Page) URL() string {
	p.urlMu.RLock()
	defer p.urlMu.RUnlock()
	return p.url
}

func timeoutErr(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, api.ErrTimeout) {
		return fmt.Errorf("%w: %w", api.ErrTimeout, err)
	}
	return err
}

func decodeBool(raw easyjson.RawMessage) (bool, error) {
	in := jlexer.Lexer{Data: raw}
	v := in.Bool()
	return v, in.Error()
}

func decodeString(raw easyjson.RawMessage) (string, error) {
	in := jlexer.Lexer{Data: raw}
	if in.IsNull() {
		return "", nil
	}
	v := in.String()
	return v, in.Error()
}

// rect is a box returned by the page scripts, or null.
type rect struct {
	X, Y, Width, Height float64

	null bool
}

func (r *rect) UnmarshalEasyJSON(in *jlexer.Lexer) {
	if in.IsNull() {
		in.Skip()
		r.null = true
		return
	}
	in.Delim('{')
	for !in.IsDelim('}') {
		key := in.UnsafeString()
		in.WantColon()
		if in.IsNull() {
			in.Skip()
			in.WantComma()
			continue
		}
		switch key {
		case "x":
			r.X = in.Float64()
		case "y":
			r.Y = in.Float64()
		case "width":
			r.Width = in.Float64()
		case "height":
			r.Height = in.Float64()
		default:
			in.SkipRecursive()
		}
		in.WantComma()
	}
	in.Delim('}')
}
