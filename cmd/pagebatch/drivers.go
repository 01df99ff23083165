package main

import (
	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/chromium"
	"github.com/pagebatch/pagebatch/config"
	"github.com/pagebatch/pagebatch/log"
	"github.com/pagebatch/pagebatch/pwdriver"
)

// newDrivers returns the drivers serving each engine with backend. The
// returned func stops the playwright driver if one is used.
func newDrivers(backend config.Backend, logger *log.Logger) (map[api.EngineType]api.BrowserType, func() error) {
	var pw *pwdriver.Driver

	drivers := make(map[api.EngineType]api.BrowserType)
	for _, e := range api.Engines() {
		switch {
		case e == api.EngineChromium && backend != config.BackendPlaywright:
			drivers[e] = chromium.NewBrowserType(logger)
		case backend == config.BackendCDP:
			// only chromium speaks CDP
		default:
			if pw == nil {
				pw = pwdriver.NewDriver(logger)
			}
			drivers[e] = pw.BrowserType(e)
		}
	}

	stop := func() error {
		if pw == nil {
			return nil
		}
		return pw.Stop()
	}

	return drivers, stop
}
