package domains

import (
	"context"
	"errors"
	"fmt"

	"github.com/chromedp/cdproto/cdp"
	cdpr "github.com/chromedp/cdproto/runtime"
	"github.com/mailru/easyjson"
)

// Runtime exposes the CDP Runtime domain actions.
type Runtime interface {
	Evaluate(ctx context.Context, expression string) (easyjson.RawMessage, error)
}

var _ Runtime = &runtime{}

type runtime struct {
	exec cdp.Executor
}

// NewRuntime returns a new CDP Runtime domain wrapper.
func NewRuntime(exec cdp.Executor) Runtime {
	return &runtime{exec}
}

// Evaluate evaluates expression in the page, awaits the result if it's a
// promise and returns it JSON encoded. A thrown exception is an error.
func (r *runtime) Evaluate(ctx context.Context, expression string) (easyjson.RawMessage, error) {
	action := cdpr.Evaluate(expression).
		WithReturnByValue(true).
		WithAwaitPromise(true)

	res, exp, err := action.Do(cdp.WithExecutor(ctx, r.exec))
	if err != nil {
		return nil, fmt.Errorf("evaluating expression: %w", err)
	}
	if exp != nil {
		msg := exp.Text
		if exp.Exception != nil && exp.Exception.Description != "" {
			msg = exp.Exception.Description
		}
		return nil, fmt.Errorf("evaluating expression: %w", errors.New(msg))
	}
	if res == nil {
		return nil, nil
	}

	return res.Value, nil
}
