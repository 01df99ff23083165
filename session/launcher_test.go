package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/internal/browsertest"
	"github.com/pagebatch/pagebatch/log"
)

const testURL = "http://httpbin.test/html"

func newFakeEngine() *browsertest.BrowserType {
	return &browsertest.BrowserType{
		Engine: api.EngineChromium,
		Pages: map[string]browsertest.Document{
			testURL: {Elements: map[string]string{"h1": "Herman Melville - Moby-Dick"}},
		},
	}
}

func newTestLauncher(bt *browsertest.BrowserType, opts Options) *Launcher {
	return NewLauncher(map[api.EngineType]api.BrowserType{bt.Engine: bt}, opts, log.NewNullLogger())
}

func TestLauncherLaunch(t *testing.T) {
	t.Parallel()

	bt := newFakeEngine()
	l := newTestLauncher(bt, Options{})

	var stages []Stage
	ctx := WithHooks(context.Background(), &Hooks{OnStage: func(s Stage) { stages = append(stages, s) }})

	cfg := LaunchConfig{Headless: false, SlowMoMs: 250, ExecutablePath: "/opt/chrome"}
	s, err := l.Launch(ctx, api.EngineChromium, cfg, testURL)
	require.NoError(t, err)

	assert.Equal(t, testURL, s.Page.URL())
	assert.Equal(t, []Stage{StageLaunched, StageContextReady, StageNavigated}, stages)

	require.Len(t, bt.Launched(), 1)
	opts := bt.Launched()[0].Options()
	assert.Equal(t, "/opt/chrome", opts.ExecutablePath)
	assert.False(t, opts.Headless)
	assert.Equal(t, 250*time.Millisecond, opts.SlowMo)

	require.NoError(t, s.Close(context.Background()))
	assert.Equal(t, []string{
		"launch chromium headless=false slowMo=250ms path=/opt/chrome",
		"newContext",
		"newPage",
		"goto " + testURL,
		"context.close",
		"browser.close",
	}, bt.Recorder.Calls())
}

func TestLauncherLaunchErrors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name      string
		engine    api.EngineType
		cfg       LaunchConfig
		url       string
		setup     func(*browsertest.BrowserType)
		wantNav   bool
		wantClose int
	}{
		{
			name:   "no_driver",
			engine: api.EngineWebKit,
			cfg:    DefaultLaunchConfig(),
			url:    testURL,
		},
		{
			name:   "negative_slowmo",
			engine: api.EngineChromium,
			cfg:    LaunchConfig{Headless: true, SlowMoMs: -1},
			url:    testURL,
		},
		{
			name:   "process",
			engine: api.EngineChromium,
			cfg:    DefaultLaunchConfig(),
			url:    testURL,
			setup:  func(bt *browsertest.BrowserType) { bt.LaunchErr = errBoom },
		},
		{
			name:      "context",
			engine:    api.EngineChromium,
			cfg:       DefaultLaunchConfig(),
			url:       testURL,
			setup:     func(bt *browsertest.BrowserType) { bt.NewContextErr = errBoom },
			wantClose: 1,
		},
		{
			name:      "page",
			engine:    api.EngineChromium,
			cfg:       DefaultLaunchConfig(),
			url:       testURL,
			setup:     func(bt *browsertest.BrowserType) { bt.NewPageErr = errBoom },
			wantClose: 1,
		},
		{
			name:      "navigation",
			engine:    api.EngineChromium,
			cfg:       DefaultLaunchConfig(),
			url:       "http://unreachable.test/",
			wantNav:   true,
			wantClose: 1,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			bt := newFakeEngine()
			if tt.setup != nil {
				tt.setup(bt)
			}
			s, err := newTestLauncher(bt, Options{}).Launch(context.Background(), tt.engine, tt.cfg, tt.url)
			require.Error(t, err)
			assert.Nil(t, s)

			if tt.wantNav {
				var ne *NavigationError
				require.ErrorAs(t, err, &ne)
				assert.Equal(t, tt.url, ne.URL)
			} else {
				var le *LaunchError
				require.ErrorAs(t, err, &le)
				assert.Equal(t, tt.engine, le.Engine)
			}

			closed := 0
			for _, b := range bt.Launched() {
				closed += b.Closed()
			}
			assert.Equal(t, tt.wantClose, closed, "engine must be closed once after it started")
		})
	}
}

func TestLauncherNoDriver(t *testing.T) {
	t.Parallel()

	_, err := newTestLauncher(newFakeEngine(), Options{}).
		Launch(context.Background(), api.EngineFirefox, DefaultLaunchConfig(), testURL)
	assert.ErrorIs(t, err, ErrNoDriver)
}

func TestSessionCloseOnce(t *testing.T) {
	t.Parallel()

	bt := newFakeEngine()
	bt.CloseErr = errors.New("already gone")

	s, err := newTestLauncher(bt, Options{}).
		Launch(context.Background(), api.EngineChromium, DefaultLaunchConfig(), testURL)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err1 := s.Close(ctx)
	err2 := s.Close(context.Background())
	require.Error(t, err1)
	assert.Equal(t, err1, err2)
	assert.ErrorIs(t, err1, bt.CloseErr)
	assert.Equal(t, 1, bt.Launched()[0].Closed())
}

func TestGetHooks(t *testing.T) {
	t.Parallel()

	assert.Nil(t, GetHooks(context.Background()))

	var h *Hooks
	assert.NotPanics(t, func() { h.stage(StageLaunched) })

	hooks := &Hooks{}
	assert.Same(t, hooks, GetHooks(WithHooks(context.Background(), hooks)))
}
