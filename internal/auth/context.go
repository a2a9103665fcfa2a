// ABOUTME: Caller context for tracking which execution context sent a request
// ABOUTME: Provides WithCaller/CallerFrom for propagating the sender via context

package auth

import (
	"context"
)

// Caller identifies the execution context a request came from.
// ContextID is empty for one-shot requests that did not name their sender.
type Caller struct {
	ContextID string
	Name      string
	Addr      string
}

// Anonymous reports whether the caller did not name a context.
func (c *Caller) Anonymous() bool {
	return c == nil || c.ContextID == ""
}

type callerContextKey struct{}

// WithCaller returns a new context with the Caller attached.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerContextKey{}, c)
}

// CallerFrom retrieves the Caller from the context, returning nil if not present.
func CallerFrom(ctx context.Context) *Caller {
	c, ok := ctx.Value(callerContextKey{}).(*Caller)
	if !ok {
		return nil
	}
	return c
}
