// Package chromium is responsible for launching a Chromium browser process
// and driving it over CDP.
package chromium

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/browserprocess"
	"github.com/pagebatch/pagebatch/cdp"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/storage"
)

var _ api.BrowserType = &BrowserType{}

// BrowserType launches Chromium browsers.
type BrowserType struct {
	logger   *log.Logger
	viewport api.Viewport
}

// NewBrowserType returns a BrowserType whose pages use the default viewport.
func NewBrowserType(logger *log.Logger) *BrowserType {
	return &BrowserType{
		logger:   logger,
		viewport: api.DefaultViewport(),
	}
}

// Name returns the engine name.
func (b *BrowserType) Name() string {
	return api.EngineChromium.String()
}

// Launch starts a browser process at opts.ExecutablePath and connects to it.
// The process lives until the returned browser is closed or ctx is done.
func (b *BrowserType) Launch(ctx context.Context, opts *api.LaunchOptions) (_ api.Browser, rerr error) {
	if opts == nil || opts.ExecutablePath == "" {
		return nil, errors.New("launching chromium: no executable path")
	}

	dataDir := &storage.Dir{}
	if err := dataDir.Make("", ""); err != nil {
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	args := prepareFlags(opts, dataDir.Dir, b.viewport)
	b.logger.Debugf("BrowserType:Launch", "executable:%q args:%v", opts.ExecutablePath, args)

	proc, err := newBrowserProcess(ctx, opts.ExecutablePath, args, opts.Env, dataDir, opts.Timeout, b.logger)
	if err != nil {
		_ = dataDir.Cleanup()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}
	regCtx := context.WithoutCancel(ctx)
	browserprocess.Register(regCtx, b.logger, proc.Pid())
	defer func() {
		if rerr != nil {
			_ = proc.wait(canceledContext())
			browserprocess.Unregister(regCtx, b.logger, proc.Pid())
		}
	}()

	connCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		connCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	client := cdp.NewClient(b.logger)
	if err := client.Connect(connCtx, proc.WsURL()); err != nil {
		return nil, fmt.Errorf("connecting to browser DevTools URL: %w", err)
	}
	product, err := client.Browser.GetVersion(connCtx)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("launching chromium: %w", err)
	}

	return newBrowser(regCtx, client, proc, opts, product, b.viewport, b.logger), nil
}

func canceledContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}

// prepareFlags returns the command line of a browser exposing CDP on a
// random port.
func prepareFlags(opts *api.LaunchOptions, userDataDir string, vp api.Viewport) []string {
	flags := []string{
		"--remote-debugging-port=0",
		"--user-data-dir=" + userDataDir,
		"--window-size=" + strconv.FormatInt(vp.Width, 10) + "," + strconv.FormatInt(vp.Height, 10),
		"--disable-background-networking",
		"--disable-background-timer-throttling",
		"--disable-backgrounding-occluded-windows",
		"--disable-breakpad",
		"--disable-component-extensions-with-background-pages",
		"--disable-default-apps",
		"--disable-dev-shm-usage",
		"--disable-extensions",
		"--disable-hang-monitor",
		"--disable-ipc-flooding-protection",
		"--disable-popup-blocking",
		"--disable-prompt-on-repost",
		"--disable-renderer-backgrounding",
		"--disable-sync",
		"--force-color-profile=srgb",
		"--metrics-recording-only",
		"--no-default-browser-check",
		"--no-first-run",
		"--no-service-autorun",
		"--password-store=basic",
		"--use-mock-keychain",
	}
	if opts.Headless {
		flags = append(flags, "--headless", "--hide-scrollbars", "--mute-audio")
	}
	// the sandbox can't be set up for root, as in most containers
	if runtime.GOOS == "linux" && os.Geteuid() == 0 {
		flags = append(flags, "--no-sandbox")
	}
	flags = append(flags, opts.Args...)

	return append(flags, "about:blank")
}
