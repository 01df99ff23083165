package browserprocess

import (
	"context"
)

type ctxKey int

const (
	ctxKeyItemID ctxKey = iota
)

// WithItemID saves the ID of the batch item owning the engine process to
// the context.
func WithItemID(ctx context.Context, iID string) context.Context {
	return context.WithValue(ctx, ctxKeyItemID, iID)
}

// GetItemID returns the batch item ID from the context.
func GetItemID(ctx context.Context) string {
	iID, _ := ctx.Value(ctxKeyItemID).(string)
	return iID
}
