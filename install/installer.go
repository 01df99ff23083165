// Package install provisions engine binaries.
package install

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/playwright-community/playwright-go"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
)

// Error reports a failed installation.
type Error struct {
	Engine api.EngineType
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("installing %s: %v", e.Engine, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Func adapts a function to the installer interface.
type Func func(ctx context.Context, engine api.EngineType) error

// EnsureInstalled calls f. Errors that aren't an *Error are wrapped in one.
func (f Func) EnsureInstalled(ctx context.Context, engine api.EngineType) error {
	err := f(ctx, engine)
	if err == nil {
		return nil
	}
	if ie, ok := err.(*Error); ok { //nolint:errorlint
		return ie
	}
	return &Error{Engine: engine, Err: err}
}

const browsersPathEnv = "PLAYWRIGHT_BROWSERS_PATH"

// envMu serializes installs: the driver reads the install root from the
// process environment.
var envMu sync.Mutex //nolint:gochecknoglobals

// Playwright installs engines with the playwright driver into Root.
type Playwright struct {
	// Root is the installation root, the driver's default when empty.
	Root string

	install func(opts *playwright.RunOptions) error
	logger  *log.Logger
}

// NewPlaywright returns an installer putting engines into root.
func NewPlaywright(root string, logger *log.Logger) *Playwright {
	return &Playwright{
		Root: root,
		install: func(opts *playwright.RunOptions) error {
			return playwright.Install(opts)
		},
		logger: logger,
	}
}

// EnsureInstalled downloads engine, along with the driver when missing.
func (p *Playwright) EnsureInstalled(ctx context.Context, engine api.EngineType) error {
	if err := ctx.Err(); err != nil {
		return &Error{Engine: engine, Err: err}
	}

	envMu.Lock()
	defer envMu.Unlock()

	if p.Root != "" {
		restore := setenv(browsersPathEnv, p.Root)
		defer restore()
	}

	p.logger.Infof("Installer:EnsureInstalled", "installing %s into %q", engine, p.Root)
	done := make(chan error, 1)
	go func() {
		done <- p.install(&playwright.RunOptions{Browsers: []string{engine.String()}})
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		// the download can't be interrupted, keep the env until it ends.
		<-done
		err = ctx.Err()
	}
	if err != nil {
		return &Error{Engine: engine, Err: err}
	}
	p.logger.Infof("Installer:EnsureInstalled", "installed %s", engine)

	return nil
}

func setenv(key, value string) (restore func()) {
	old, had := os.LookupEnv(key)
	_ = os.Setenv(key, value)

	return func() {
		if had {
			_ = os.Setenv(key, old)
			return
		}
		_ = os.Unsetenv(key)
	}
}
