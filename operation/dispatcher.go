package operation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/storage"
)

// DefaultSelectorTimeout bounds the wait for a selector to match.
const DefaultSelectorTimeout = 30 * time.Second

const (
	screenshotMimeType = "image/png"
	screenshotFileName = "screenshot.png"
)

// Attachment is a named binary output.
type Attachment struct {
	Name     string
	Data     []byte
	MimeType string
	FileName string
}

// Result is the output of a successful operation.
type Result struct {
	Payload    map[string]any
	Attachment *Attachment
}

// Dispatcher runs operations on loaded pages.
type Dispatcher struct {
	persister       storage.FilePersister
	selectorTimeout time.Duration
	logger          *log.Logger
}

// NewDispatcher returns a dispatcher saving screenshots through persister.
// A non-positive selectorTimeout means DefaultSelectorTimeout.
func NewDispatcher(persister storage.FilePersister, selectorTimeout time.Duration, logger *log.Logger) *Dispatcher {
	if selectorTimeout <= 0 {
		selectorTimeout = DefaultSelectorTimeout
	}
	return &Dispatcher{
		persister:       persister,
		selectorTimeout: selectorTimeout,
		logger:          logger,
	}
}

// Dispatch runs req on page, which is already on req's URL.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request, page api.Page) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	d.logger.Debugf("Dispatcher:Dispatch", "operation:%s url:%q", req.Kind(), page.URL())

	switch r := req.(type) {
	case Navigate:
		return &Result{Payload: map[string]any{"url": r.URL}}, nil
	case Screenshot:
		return d.screenshot(ctx, r, page)
	case GetText:
		if err := d.waitFor(ctx, r.Kind(), r.Selector, page); err != nil {
			return nil, err
		}
		text, err := page.TextContent(ctx, r.Selector)
		if err != nil {
			return nil, failure(r.Kind(), r.Selector, err)
		}
		return &Result{Payload: map[string]any{"text": strings.TrimSpace(text)}}, nil
	case ClickElement:
		if err := d.waitFor(ctx, r.Kind(), r.Selector, page); err != nil {
			return nil, err
		}
		if err := page.Click(ctx, r.Selector); err != nil {
			return nil, failure(r.Kind(), r.Selector, err)
		}
		return &Result{Payload: map[string]any{"clicked": true, "selector": r.Selector}}, nil
	case FillForm:
		if err := d.waitFor(ctx, r.Kind(), r.Selector, page); err != nil {
			return nil, err
		}
		if err := page.Fill(ctx, r.Selector, r.Value); err != nil {
			return nil, failure(r.Kind(), r.Selector, err)
		}
		return &Result{Payload: map[string]any{"filled": true, "selector": r.Selector, "value": r.Value}}, nil
	default:
		return nil, &Error{Kind: req.Kind(), Reason: ReasonOther, Err: fmt.Errorf("unsupported request %T", req)}
	}
}

// waitFor waits for selector, a timeout means nothing matched.
func (d *Dispatcher) waitFor(ctx context.Context, kind Kind, selector string, page api.Page) error {
	err := page.WaitForSelector(ctx, selector, d.selectorTimeout)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, api.ErrTimeout):
		return &Error{Kind: kind, Reason: ReasonSelectorNotFound, Selector: selector, Err: err}
	default:
		return failure(kind, selector, err)
	}
}

func (d *Dispatcher) screenshot(ctx context.Context, r Screenshot, page api.Page) (*Result, error) {
	buf, err := page.Screenshot(ctx, &api.ScreenshotOptions{FullPage: r.FullPage})
	if err != nil {
		return nil, failure(r.Kind(), "", err)
	}

	fileName := screenshotFileName
	if r.SavePath != "" {
		if err := d.persister.Persist(ctx, r.SavePath, bytes.NewReader(buf)); err != nil {
			return nil, failure(r.Kind(), "", fmt.Errorf("saving screenshot: %w", err))
		}
		d.logger.Debugf("Dispatcher:screenshot", "saved %d bytes to %q", len(buf), r.SavePath)
		fileName = filepath.Base(r.SavePath)
	}

	return &Result{
		Payload: map[string]any{},
		Attachment: &Attachment{
			Name:     r.outputName(),
			Data:     buf,
			MimeType: screenshotMimeType,
			FileName: fileName,
		},
	}, nil
}
