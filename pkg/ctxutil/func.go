package ctxutil

import (
	"context"
)

// OnDone derives a cancelable context from parent and calls fn once the
// context is done, either because parent finished or cancel was called.
// fn is not called if cancel is invoked after stop was requested via the
// returned StopFunc.
func OnDone(parent context.Context, fn func()) (context.Context, context.CancelFunc, StopFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(ctx, fn)
	return ctx, cancel, stop
}

// StopFunc detaches the callback registered by OnDone. It reports whether
// the callback was still pending.
type StopFunc func() bool

// Canceled reports whether ctx is done because of cancellation, as opposed
// to a deadline.
func Canceled(ctx context.Context) bool {
	return ctx.Err() == context.Canceled
}
