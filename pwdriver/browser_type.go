package pwdriver

import (
	"context"
	"fmt"

	"github.com/playwright-community/playwright-go"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
)

var _ api.BrowserType = &BrowserType{}

// BrowserType launches one engine through the playwright driver.
type BrowserType struct {
	driver *Driver
	engine api.EngineType
	logger *log.Logger
}

// Name returns the engine name.
func (b *BrowserType) Name() string {
	return b.engine.String()
}

// Launch starts a browser of the engine. The driver's launch can't be
// canceled, ctx only bounds it through the launch timeout.
func (b *BrowserType) Launch(ctx context.Context, opts *api.LaunchOptions) (api.Browser, error) {
	if opts == nil {
		opts = &api.LaunchOptions{}
	}
	pw, err := b.driver.start()
	if err != nil {
		return nil, err
	}
	bt, err := pick(pw, b.engine)
	if err != nil {
		return nil, err
	}

	b.logger.Debugf("BrowserType:Launch", "engine:%s executable:%q", b.engine, opts.ExecutablePath)
	pb, err := bt.Launch(launchOptions(ctx, opts))
	if err != nil {
		return nil, fmt.Errorf("launching %s: %w", b.engine, mapError(err))
	}

	return &Browser{browser: pb, logger: b.logger}, nil
}

func pick(pw *playwright.Playwright, engine api.EngineType) (playwright.BrowserType, error) {
	var bt playwright.BrowserType
	switch engine {
	case api.EngineChromium:
		bt = pw.Chromium
	case api.EngineFirefox:
		bt = pw.Firefox
	case api.EngineWebKit:
		bt = pw.WebKit
	}
	if bt == nil {
		return nil, fmt.Errorf("engine %q isn't available in the playwright driver", engine)
	}
	return bt, nil
}
