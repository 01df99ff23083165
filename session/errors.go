package session

import (
	"errors"
	"fmt"

	"github.com/pagebatch/pagebatch/api"
)

// ErrNoDriver is returned when no driver serves an engine.
var ErrNoDriver = errors.New("no driver for engine")

// LaunchError is returned when a session could not be started.
type LaunchError struct {
	Engine api.EngineType
	Err    error
}

func (e *LaunchError) Error() string {
	return fmt.Sprintf("launching %s: %v", e.Engine, e.Err)
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// NavigationError is returned when the session's page failed to load.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigating to %q: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error {
	return e.Err
}
