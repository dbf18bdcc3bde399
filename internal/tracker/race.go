package tracker

import (
	"context"
	"errors"
	"time"
)

var errTimedOut = errors.New("timed out")

// firstSettled runs fn and waits for whichever comes first: fn returning or
// d elapsing. The loser is discarded; fn's context is cancelled either way so
// a well-behaved fn stops early.
func firstSettled[T any](ctx context.Context, d time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := fn(ctx)
		done <- result{v: v, err: err}
	}()

	timer := time.NewTimer(d)
	defer timer.Stop()

	var zero T
	select {
	case r := <-done:
		return r.v, r.err
	case <-timer.C:
		return zero, errTimedOut
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
