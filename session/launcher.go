// Package session starts isolated engine sessions, one process, context and
// page each.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/log"
)

// DefaultCloseTimeout bounds the teardown of a session.
const DefaultCloseTimeout = 10 * time.Second

// LaunchConfig is the per item configuration of an engine process.
type LaunchConfig struct {
	Headless       bool
	SlowMoMs       int64
	ExecutablePath string
}

// DefaultLaunchConfig returns a headless configuration without slow motion.
func DefaultLaunchConfig() LaunchConfig {
	return LaunchConfig{Headless: true}
}

// Options tunes a Launcher. Zero durations disable the bound, except
// CloseTimeout which falls back to DefaultCloseTimeout.
type Options struct {
	LaunchTimeout     time.Duration
	NavigationTimeout time.Duration
	CloseTimeout      time.Duration
}

// Launcher starts sessions on the engine drivers it was given.
type Launcher struct {
	drivers map[api.EngineType]api.BrowserType
	opts    Options
	logger  *log.Logger
}

// NewLauncher returns a launcher using drivers to start engines.
func NewLauncher(drivers map[api.EngineType]api.BrowserType, opts Options, logger *log.Logger) *Launcher {
	if opts.CloseTimeout <= 0 {
		opts.CloseTimeout = DefaultCloseTimeout
	}
	return &Launcher{
		drivers: drivers,
		opts:    opts,
		logger:  logger,
	}
}

// Launch starts engine with cfg and loads url in a fresh context and page.
// The process is closed before returning if any step fails.
func (l *Launcher) Launch(ctx context.Context, engine api.EngineType, cfg LaunchConfig, url string) (_ *Session, err error) {
	bt, ok := l.drivers[engine]
	if !ok {
		return nil, &LaunchError{Engine: engine, Err: fmt.Errorf("%w %q", ErrNoDriver, engine)}
	}
	if cfg.SlowMoMs < 0 {
		return nil, &LaunchError{Engine: engine, Err: fmt.Errorf("slowMo must not be negative, got %d", cfg.SlowMoMs)}
	}

	l.logger.Infof("Launcher:Launch", "engine:%s executablePath:%q headless:%t slowMo:%dms",
		engine, cfg.ExecutablePath, cfg.Headless, cfg.SlowMoMs)

	b, err := bt.Launch(ctx, &api.LaunchOptions{
		ExecutablePath: cfg.ExecutablePath,
		Headless:       cfg.Headless,
		SlowMo:         time.Duration(cfg.SlowMoMs) * time.Millisecond,
		Timeout:        l.opts.LaunchTimeout,
	})
	if err != nil {
		return nil, &LaunchError{Engine: engine, Err: err}
	}

	s := &Session{
		Browser:      b,
		closeTimeout: l.opts.CloseTimeout,
		logger:       l.logger,
	}
	defer func() {
		if err == nil {
			return
		}
		if cerr := s.Close(ctx); cerr != nil {
			l.logger.Warnf("Launcher:Launch", "closing engine after failed launch: %v", cerr)
		}
	}()

	hooks := GetHooks(ctx)
	hooks.stage(StageLaunched)
	l.logger.Debugf("Launcher:Launch", "engine:%s pid:%d version:%q", engine, b.Pid(), b.Version())

	if s.Context, err = b.NewContext(ctx); err != nil {
		return nil, &LaunchError{Engine: engine, Err: fmt.Errorf("creating browser context: %w", err)}
	}
	if s.Page, err = s.Context.NewPage(ctx); err != nil {
		return nil, &LaunchError{Engine: engine, Err: fmt.Errorf("creating page: %w", err)}
	}
	hooks.stage(StageContextReady)

	navCtx := ctx
	if l.opts.NavigationTimeout > 0 {
		var cancel context.CancelFunc
		navCtx, cancel = context.WithTimeout(ctx, l.opts.NavigationTimeout)
		defer cancel()
	}
	if err = s.Page.Goto(navCtx, url); err != nil {
		return nil, &NavigationError{URL: url, Err: err}
	}
	hooks.stage(StageNavigated)

	return s, nil
}

// Session owns one engine process with one context and one page.
type Session struct {
	Browser api.Browser
	Context api.BrowserContext
	Page    api.Page

	closeTimeout time.Duration
	logger       *log.Logger

	closeOnce sync.Once
	closeErr  error
}

// Close closes the context and the engine process. It runs once, later calls
// return the first result. Closing proceeds even if ctx is already done.
func (s *Session) Close(ctx context.Context) error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.closeTimeout)
		defer cancel()

		if s.Context != nil {
			if err := s.Context.Close(ctx); err != nil {
				s.logger.Debugf("Session:Close", "closing browser context: %v", err)
			}
		}
		if err := s.Browser.Close(ctx); err != nil {
			s.closeErr = fmt.Errorf("closing engine: %w", err)
		}
	})

	return s.closeErr
}
