package operation

import (
	"context"
	"errors"
	"fmt"

	"github.com/pagebatch/pagebatch/api"
)

// Reason classifies an operation failure.
type Reason string

// Failure reasons.
const (
	ReasonSelectorNotFound Reason = "selectorNotFound"
	ReasonTimeout          Reason = "timeout"
	ReasonOther            Reason = "other"
)

// Error is an operation failure.
type Error struct {
	Kind     Kind
	Reason   Reason
	Selector string
	Err      error
}

func (e *Error) Error() string {
	switch {
	case e.Reason == ReasonSelectorNotFound:
		return fmt.Sprintf("%s: no element matches selector %q: %v", e.Kind, e.Selector, e.Err)
	case e.Selector != "":
		return fmt.Sprintf("%s on %q: %v", e.Kind, e.Selector, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// failure wraps err of a page primitive run after the element was found.
func failure(kind Kind, selector string, err error) *Error {
	reason := ReasonOther
	if errors.Is(err, api.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	return &Error{Kind: kind, Reason: reason, Selector: selector, Err: err}
}
