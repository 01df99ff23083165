// Package browsertest provides in-memory engine fakes for tests.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pagebatch/pagebatch/api"
)

// Document is the content a fake page serves for a URL.
type Document struct {
	// Elements maps selectors to their text content.
	Elements map[string]string
	// Hidden selectors exist but can't be clicked.
	Hidden map[string]bool
	// Fields are the selectors of form fields. Their text content stays as
	// is and reads report the filled value.
	Fields map[string]bool
}

// Recorder records the calls made on the fakes, in order.
type Recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *Recorder) record(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

// Calls returns the recorded calls.
func (r *Recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many recorded calls equal call.
func (r *Recorder) Count(call string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

// BrowserType is a fake engine. Failures are injected through its fields.
type BrowserType struct {
	Engine api.EngineType
	// Pages maps URLs to documents, unknown URLs fail to load.
	Pages map[string]Document
	// Screenshot is returned by every page's Screenshot.
	Screenshot []byte

	LaunchErr     error
	NewContextErr error
	NewPageErr    error
	CloseErr      error

	Recorder *Recorder

	mu       sync.Mutex
	launched []*Browser
}

var _ api.BrowserType = &BrowserType{}

// Name returns the engine name.
func (b *BrowserType) Name() string {
	return b.Engine.String()
}

func (b *BrowserType) recorder() *Recorder {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.Recorder == nil {
		b.Recorder = &Recorder{}
	}
	return b.Recorder
}

// Launch records the launch options and returns a fake browser.
func (b *BrowserType) Launch(ctx context.Context, opts *api.LaunchOptions) (api.Browser, error) {
	rec := b.recorder()
	rec.record("launch %s headless=%t slowMo=%s path=%s", b.Engine, opts.Headless, opts.SlowMo, opts.ExecutablePath)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if b.LaunchErr != nil {
		return nil, b.LaunchErr
	}

	br := &Browser{typ: b, rec: rec, opts: *opts}
	b.mu.Lock()
	b.launched = append(b.launched, br)
	b.mu.Unlock()

	return br, nil
}

// Launched returns the browsers launched so far.
func (b *BrowserType) Launched() []*Browser {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*Browser(nil), b.launched...)
}

// Browser is a fake browser process.
type Browser struct {
	typ  *BrowserType
	rec  *Recorder
	opts api.LaunchOptions

	mu     sync.Mutex
	closed int
}

// Options returns the options the browser was launched with.
func (b *Browser) Options() api.LaunchOptions {
	return b.opts
}

// Closed returns how many times Close was called.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *Browser) Close(context.Context) error {
	b.mu.Lock()
	b.closed++
	b.mu.Unlock()
	b.rec.record("browser.close")
	return b.typ.CloseErr
}

func (b *Browser) NewContext(context.Context) (api.BrowserContext, error) {
	b.rec.record("newContext")
	if b.typ.NewContextErr != nil {
		return nil, b.typ.NewContextErr
	}
	return &BrowserContext{browser: b}, nil
}

func (b *Browser) Pid() int        { return 4242 }
func (b *Browser) Version() string { return "1.0" }

// BrowserContext is a fake browser context.
type BrowserContext struct {
	browser *Browser
}

func (c *BrowserContext) Close(context.Context) error {
	c.browser.rec.record("context.close")
	return nil
}

func (c *BrowserContext) NewPage(context.Context) (api.Page, error) {
	c.browser.rec.record("newPage")
	if c.browser.typ.NewPageErr != nil {
		return nil, c.browser.typ.NewPageErr
	}
	return NewPage(c.browser.typ.Pages, c.browser.typ.Screenshot, c.browser.rec), nil
}

// Page is a fake page serving documents from memory. Filled values
// set the value of form fields, read back by TextContent.
type Page struct {
	pages      map[string]Document
	screenshot []byte
	rec        *Recorder

	mu     sync.Mutex
	url    string
	doc    Document
	values map[string]string
	// ScreenshotOpts holds the options of the last screenshot.
	ScreenshotOpts *api.ScreenshotOptions
}

var _ api.Page = &Page{}

// NewPage returns a blank page able to load pages.
func NewPage(pages map[string]Document, screenshot []byte, rec *Recorder) *Page {
	if rec == nil {
		rec = &Recorder{}
	}
	return &Page{pages: pages, screenshot: screenshot, rec: rec, url: "about:blank"}
}

// Recorder returns the page's call recorder.
func (p *Page) Recorder() *Recorder {
	return p.rec
}

func (p *Page) Goto(ctx context.Context, url string) error {
	p.rec.record("goto %s", url)
	if err := ctx.Err(); err != nil {
		return err
	}
	doc, ok := p.pages[url]
	if !ok {
		return fmt.Errorf("net::ERR_NAME_NOT_RESOLVED at %s", url)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.doc = Document{Elements: map[string]string{}, Hidden: doc.Hidden, Fields: doc.Fields}
	for k, v := range doc.Elements {
		p.doc.Elements[k] = v
	}
	p.values = map[string]string{}

	return nil
}

func (p *Page) has(selector string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.doc.Elements[selector]
	return ok
}

func (p *Page) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	p.rec.record("waitForSelector %s", selector)
	if p.has(selector) {
		return nil
	}
	return fmt.Errorf("waiting for selector %q: %w after %s", selector, api.ErrTimeout, timeout)
}

func (p *Page) TextContent(_ context.Context, selector string) (string, error) {
	p.rec.record("textContent %s", selector)
	p.mu.Lock()
	defer p.mu.Unlock()
	text, ok := p.doc.Elements[selector]
	if !ok {
		return "", fmt.Errorf("no element matches selector %q", selector)
	}
	if p.doc.Fields[selector] {
		return p.values[selector], nil
	}
	return text, nil
}

func (p *Page) Click(_ context.Context, selector string) error {
	p.rec.record("click %s", selector)
	if !p.has(selector) {
		return fmt.Errorf("no element matches selector %q", selector)
	}
	p.mu.Lock()
	hidden := p.doc.Hidden[selector]
	p.mu.Unlock()
	if hidden {
		return errors.New("element is not visible")
	}
	return nil
}

func (p *Page) Fill(_ context.Context, selector, value string) error {
	p.rec.record("fill %s %s", selector, value)
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.doc.Elements[selector]; !ok {
		return fmt.Errorf("no element matches selector %q", selector)
	}
	if !p.doc.Fields[selector] {
		return errors.New("element is not an <input>, <textarea> or <select> element")
	}
	p.values[selector] = value
	return nil
}

func (p *Page) Screenshot(_ context.Context, opts *api.ScreenshotOptions) ([]byte, error) {
	p.rec.record("screenshot fullPage=%t", opts != nil && opts.FullPage)
	p.mu.Lock()
	p.ScreenshotOpts = opts
	p.mu.Unlock()
	return p.screenshot, nil
}

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}
