package api

import "context"

// Browser is a running engine process.
type Browser interface {
	// Close shuts the engine process down.
	Close(ctx context.Context) error
	NewContext(ctx context.Context) (BrowserContext, error)
	// Pid returns the OS process ID or 0 if it is unknown.
	Pid() int
	Version() string
}

// BrowserContext is an isolated, incognito-like browsing context.
type BrowserContext interface {
	Close(ctx context.Context) error
	NewPage(ctx context.Context) (Page, error)
}
