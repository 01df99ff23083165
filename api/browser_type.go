package api

import "context"

// BrowserType starts engine processes of one engine type.
type BrowserType interface {
	Launch(ctx context.Context, opts *LaunchOptions) (Browser, error)
	Name() string
}
