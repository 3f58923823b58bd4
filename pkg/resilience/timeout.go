package resilience

import (
	"context"
	"fmt"
	"time"
)

// WithTimeoutValue runs fn under a deadline derived from ctx and returns its
// result. When the deadline passes first, fn is left to finish in its own
// goroutine and whatever it produces is discarded, so a caller only ever sees
// values from calls that completed in time. fn should honour ctx to release
// its resources promptly.
func WithTimeoutValue[T any](ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}

	type outcome struct {
		value T
		err   error
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		v, err := fn(attemptCtx)
		done <- outcome{value: v, err: err}
	}()

	var zero T
	select {
	case o := <-done:
		return o.value, o.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, fmt.Errorf("%s: parent context cancelled: %w", name, err)
		}
		return zero, fmt.Errorf("%s: %w (limit: %v)", name, context.DeadlineExceeded, timeout)
	}
}
