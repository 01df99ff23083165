package api

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// EngineType names one of the browser engines that can be automated.
type EngineType string

// Supported engine types.
const (
	EngineChromium EngineType = "chromium"
	EngineFirefox  EngineType = "firefox"
	EngineWebKit   EngineType = "webkit"
)

// DefaultEngine is used when an item doesn't pick an engine.
const DefaultEngine = EngineChromium

// ErrTimeout is wrapped by page primitives that gave up waiting.
var ErrTimeout = errors.New("timed out")

// Engines returns all supported engine types.
func Engines() []EngineType {
	return []EngineType{EngineChromium, EngineFirefox, EngineWebKit}
}

// ParseEngineType returns the engine type with the given name.
// An empty name yields the default engine.
func ParseEngineType(name string) (EngineType, error) {
	switch e := EngineType(strings.ToLower(strings.TrimSpace(name))); e {
	case "":
		return DefaultEngine, nil
	case EngineChromium, EngineFirefox, EngineWebKit:
		return e, nil
	default:
		return "", fmt.Errorf("unknown browser type %q, must be one of %q", name, Engines())
	}
}

// String returns the engine name.
func (e EngineType) String() string {
	return string(e)
}

// LaunchOptions are the options a BrowserType receives to start an engine.
type LaunchOptions struct {
	// ExecutablePath is the resolved path of the engine binary.
	ExecutablePath string
	Headless       bool
	// SlowMo delays every page action.
	SlowMo time.Duration
	// Timeout bounds process start up.
	Timeout time.Duration
	Args    []string
	Env     []string
}

// ScreenshotOptions are the options of Page.Screenshot.
type ScreenshotOptions struct {
	// FullPage captures the whole scrollable document instead of the viewport.
	FullPage bool
}

// Viewport is the size of the page viewport in CSS pixels.
type Viewport struct {
	Width  int64
	Height int64
}

// Default viewport of new pages.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// DefaultViewport returns the viewport new pages start with.
func DefaultViewport() Viewport {
	return Viewport{Width: DefaultViewportWidth, Height: DefaultViewportHeight}
}
