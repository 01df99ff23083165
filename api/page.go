package api

import (
	"context"
	"time"
)

// Page is the set of page primitives the operations are built on.
type Page interface {
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Goto(ctx context.Context, url string) error
	Screenshot(ctx context.Context, opts *ScreenshotOptions) ([]byte, error)
	TextContent(ctx context.Context, selector string) (string, error)
	URL() string
	// WaitForSelector blocks until an element matches selector. It returns
	// an error wrapping ErrTimeout when nothing matched within timeout.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
}
