package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
)

// WithTimeout runs fn under a context bounded by timeout. A deadline hit
// returns an error matching both apperrors.ErrTimeout and
// context.DeadlineExceeded; fn may keep running in the background, so it
// must not write shared state after its context is done. A timeout <= 0
// runs fn unbounded.
func WithTimeout(ctx context.Context, timeout time.Duration, name string, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- fn(attemptCtx)
	}()
	select {
	case err := <-done:
		return err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return fmt.Errorf("%s: %w after %v: %w", name, apperrors.ErrTimeout, timeout, context.DeadlineExceeded)
	}
}
