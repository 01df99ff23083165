package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/executable"
	"github.com/pagebatch/pagebatch/install"
	"github.com/pagebatch/pagebatch/operation"
	"github.com/pagebatch/pagebatch/session"
)

// Kind classifies an item failure.
type Kind string

// Failure kinds.
const (
	KindExecutableNotFound Kind = "executableNotFound"
	KindInstallFailure     Kind = "installFailure"
	KindLaunch             Kind = "launch"
	KindNavigation         Kind = "navigation"
	KindOperation          Kind = "operation"
	KindCanceled           Kind = "canceled"
	KindUnknown            Kind = "unknown"
)

// KindOf classifies err. Launch errors caused by a missing executable are
// launch errors.
func KindOf(err error) Kind {
	var (
		oe *operation.Error
		ne *session.NavigationError
		le *session.LaunchError
		ie *install.Error
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &oe):
		return KindOperation
	case errors.As(err, &ne):
		return KindNavigation
	case errors.As(err, &le):
		return KindLaunch
	case errors.As(err, &ie):
		return KindInstallFailure
	case errors.Is(err, executable.ErrNotFound):
		return KindExecutableNotFound
	case errors.Is(err, context.Canceled):
		return KindCanceled
	default:
		return KindUnknown
	}
}

// ItemError aborts a batch on the first failed item.
type ItemError struct {
	Index  int
	Engine api.EngineType
	Kind   Kind
	Err    error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("item %d (%s): %v", e.Index, e.Engine, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
