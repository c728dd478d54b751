package rest

import (
	"context"
	"time"

	"github.com/Freeeeeet/tutor_scheduler/internal/apperr"
	"github.com/sethvargo/go-retry"
)

const conflictAttempts = 3

var conflictBackoff = func() retry.Backoff {
	b := retry.NewExponential(20 * time.Millisecond)
	b = retry.WithJitter(10*time.Millisecond, b)
	return retry.WithMaxRetries(conflictAttempts-1, b)
}

// retryOnConflict повторяет fn, пока запись меняется параллельно.
// Остальные ошибки возвращаются сразу.
func retryOnConflict(ctx context.Context, fn func(ctx context.Context) error) error {
	return retry.Do(ctx, conflictBackoff(), func(ctx context.Context) error {
		err := fn(ctx)
		if apperr.IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}
