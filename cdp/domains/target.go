package domains

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpt "github.com/chromedp/cdproto/target"
)

// Target exposes the CDP Target domain actions.
type Target interface {
	AttachToTarget(ctx context.Context, targetID string) (sessionID string, err error)
	CreateBrowserContext(ctx context.Context, disposeOnDetach bool) (id string, err error)
	CreateTarget(ctx context.Context, url, browserContextID string) (targetID string, err error)
	DisposeBrowserContext(ctx context.Context, id string) error
}

var _ Target = &target{}

type target struct {
	exec cdp.Executor
}

// NewTarget returns a new CDP Target domain wrapper.
func NewTarget(exec cdp.Executor) Target {
	return &target{exec}
}

// AttachToTarget attaches to the target in flat mode, so that commands for
// it are routed with a session ID on the browser connection.
func (t *target) AttachToTarget(ctx context.Context, targetID string) (string, error) {
	action := cdpt.AttachToTarget(cdpt.ID(targetID)).WithFlatten(true)
	sid, err := action.Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		return "", fmt.Errorf("attaching to target %q: %w", targetID, err)
	}

	return string(sid), nil
}

func (t *target) CreateBrowserContext(ctx context.Context, disposeOnDetach bool) (string, error) {
	action := cdpt.CreateBrowserContext().WithDisposeOnDetach(disposeOnDetach)
	bctxID, err := action.Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		return "", fmt.Errorf("creating browser context: %w", err)
	}

	return string(bctxID), nil
}

func (t *target) CreateTarget(ctx context.Context, url, browserContextID string) (string, error) {
	action := cdpt.CreateTarget(url)
	if browserContextID != "" {
		action = action.WithBrowserContextID(cdp.BrowserContextID(browserContextID))
	}
	tid, err := action.Do(cdp.WithExecutor(ctx, t.exec))
	if err != nil {
		return "", fmt.Errorf("creating target: %w", err)
	}

	return string(tid), nil
}

func (t *target) DisposeBrowserContext(ctx context.Context, id string) error {
	action := cdpt.DisposeBrowserContext(cdp.BrowserContextID(id))
	if err := action.Do(cdp.WithExecutor(ctx, t.exec)); err != nil {
		return fmt.Errorf("disposing browser context %q: %w", id, err)
	}

	return nil
}
