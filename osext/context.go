package osext

import (
	"context"
)

type ctxKey int

const (
	ctxKeyRunID ctxKey = iota
)

// WithRunID saves the current batch run ID to the context.
func WithRunID(ctx context.Context, rID string) context.Context {
	return context.WithValue(ctx, ctxKeyRunID, rID)
}

// GetRunID returns the current batch run ID from the context.
func GetRunID(ctx context.Context) string {
	rID, _ := ctx.Value(ctxKeyRunID).(string)
	return rID
}
