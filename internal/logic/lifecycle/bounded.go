package lifecycle

import (
	"context"
	"fmt"
	"time"
)

type outcome[T any] struct {
	value T
	err   error
}

// runBounded runs fn in its own goroutine and waits at most timeout for it.
// Panics in fn are returned as ErrPanic. When the wait is abandoned, res.err
// wraps ErrTimeout and late delivers fn's eventual outcome; otherwise late is nil.
func runBounded[T any](
	ctx context.Context,
	timeout time.Duration,
	fn func(context.Context) (T, error),
) (res outcome[T], late <-chan outcome[T]) {
	ctx, cancel := context.WithTimeout(ctx, timeout)

	done := make(chan outcome[T], 1)

	go func() {
		var out outcome[T]

		defer func() {
			if r := recover(); r != nil {
				out = outcome[T]{err: fmt.Errorf("%w: %v", ErrPanic, r)}
			}

			done <- out
		}()

		out.value, out.err = fn(ctx)
	}()

	defer cancel()

	select {
	case out := <-done:
		return out, nil
	case <-ctx.Done():
		return outcome[T]{err: fmt.Errorf("%w after %s: %w", ErrTimeout, timeout, ctx.Err())}, done
	}
}

// runHook runs a hook with no result under runBounded.
func runHook(ctx context.Context, timeout time.Duration, hook func(context.Context) error) error {
	res, _ := runBounded(ctx, timeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, hook(ctx)
	})

	return res.err
}
