package chromium

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/browserprocess"
	"github.com/pagebatch/pagebatch/cdp"
	"github.com/pagebatch/pagebatch/log"
)

var _ api.Browser = &Browser{}

// processExitTimeout bounds the wait for the process to exit after
// Browser.close before it is killed.
const processExitTimeout = 5 * time.Second

// Browser is a Chromium process driven over CDP.
type Browser struct {
	// carries the run and item IDs the process was registered under.
	regCtx context.Context

	client   *cdp.Client
	proc     *browserProcess
	opts     *api.LaunchOptions
	product  string
	viewport api.Viewport

	closeOnce sync.Once
	closeErr  error

	logger *log.Logger
}

func newBrowser(
	regCtx context.Context, client *cdp.Client, proc *browserProcess,
	opts *api.LaunchOptions, product string, vp api.Viewport, logger *log.Logger,
) *Browser {
	return &Browser{
		regCtx:   regCtx,
		client:   client,
		proc:     proc,
		opts:     opts,
		product:  product,
		viewport: vp,
		logger:   logger,
	}
}

// NewContext creates a new incognito-like browser context.
func (b *Browser) NewContext(ctx context.Context) (api.BrowserContext, error) {
	id, err := b.client.Target.CreateBrowserContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("creating a new browser context: %w", err)
	}
	b.logger.Debugf("Browser:NewContext", "bctxid:%v", id)

	return &BrowserContext{
		id:      id,
		browser: b,
		logger:  b.logger,
	}, nil
}

// Close shuts down the browser. The process is waited for, and killed
// if it's still around when ctx is done or after a few seconds.
func (b *Browser) Close(ctx context.Context) error {
	b.closeOnce.Do(func() {
		b.closeErr = b.close(ctx)
	})
	return b.closeErr
}

func (b *Browser) close(ctx context.Context) error {
	b.logger.Debugf("Browser:Close", "pid:%d", b.Pid())
	defer browserprocess.Unregister(b.regCtx, b.logger, b.Pid())

	var errs []error
	if err := b.client.Browser.Close(ctx); err != nil && !errors.Is(err, cdp.ErrClosed) {
		// the browser may go away before replying.
		b.logger.Debugf("Browser:Close", "closing over CDP: %v", err)
	}
	if err := b.client.Close(); err != nil {
		b.logger.Debugf("Browser:Close", "closing CDP connection: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, processExitTimeout)
	defer cancel()
	if err := b.proc.wait(waitCtx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// Pid returns the browser process ID.
func (b *Browser) Pid() int {
	return b.proc.Pid()
}

// Version returns the controlled browser's version.
func (b *Browser) Version() string {
	i := strings.Index(b.product, "/")
	if i == -1 {
		return b.product
	}
	return b.product[i+1:]
}
