package session

import (
	"context"
)

type ctxKey int

const (
	ctxKeyHooks ctxKey = iota
)

// Stage is a step of a session launch.
type Stage string

// Launch stages, in the order they are reached.
const (
	StageLaunched     Stage = "launched"
	StageContextReady Stage = "contextReady"
	StageNavigated    Stage = "navigated"
)

// Hooks are called as a launch progresses.
type Hooks struct {
	OnStage func(Stage)
}

func (h *Hooks) stage(s Stage) {
	if h == nil || h.OnStage == nil {
		return
	}
	h.OnStage(s)
}

// WithHooks adds launch hooks to the context.
func WithHooks(ctx context.Context, hooks *Hooks) context.Context {
	return context.WithValue(ctx, ctxKeyHooks, hooks)
}

// GetHooks returns the launch hooks attached to the context.
func GetHooks(ctx context.Context) *Hooks {
	v := ctx.Value(ctxKeyHooks)
	if v == nil {
		return nil
	}
	if h, ok := v.(*Hooks); ok {
		return h
	}
	return nil
}
