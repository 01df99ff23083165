// Package pwdriver drives chromium, firefox and webkit through the
// playwright driver.
package pwdriver

import (
	"fmt"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
)

// Driver runs the playwright driver on first use and shares it with the
// browser types it hands out.
type Driver struct {
	mu  sync.Mutex
	pw  *playwright.Playwright
	run func() (*playwright.Playwright, error)

	logger *log.Logger
}

// NewDriver returns a driver. Browsers are never downloaded by it, that's
// the installer's job.
func NewDriver(logger *log.Logger) *Driver {
	return &Driver{
		run: func() (*playwright.Playwright, error) {
			return playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true})
		},
		logger: logger,
	}
}

func (d *Driver) start() (*playwright.Playwright, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw != nil {
		return d.pw, nil
	}
	d.logger.Debugf("Driver:start", "starting playwright driver")
	pw, err := d.run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright driver: %w", err)
	}
	d.pw = pw

	return pw, nil
}

// BrowserType returns the browser type for engine.
func (d *Driver) BrowserType(engine api.EngineType) *BrowserType {
	return &BrowserType{
		driver: d,
		engine: engine,
		logger: d.logger,
	}
}

// Stop stops the driver if it was started.
func (d *Driver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pw == nil {
		return nil
	}
	d.logger.Debugf("Driver:Stop", "stopping playwright driver")
	err := d.pw.Stop()
	d.pw = nil
	if err != nil {
		return fmt.Errorf("stopping playwright driver: %w", err)
	}

	return nil
}
