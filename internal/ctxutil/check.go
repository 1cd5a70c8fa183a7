// Package ctxutil provides context helpers for frame loops.
package ctxutil

import "context"

// Canceled returns the context error once ctx is done, nil otherwise.
// Frame loops call it before each blocking read or write.
func Canceled(ctx context.Context) error {
	return ctx.Err()
}
