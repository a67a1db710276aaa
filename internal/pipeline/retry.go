package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/dgallion1/docsplit/internal/contentgraph"
	"github.com/dgallion1/docsplit/internal/objectstore"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var storeErr *objectstore.RetryableError
	var graphErr *contentgraph.RetryableError
	return errors.As(err, &storeErr) || errors.As(err, &graphErr)
}

// withRetry runs fn until it succeeds, fails permanently, or attempts run out.
func withRetry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = MaxRetries
	}
	return retry.Do(fn,
		retry.Context(ctx),
		retry.Attempts(uint(attempts)),
		retry.Delay(delay),
		retry.MaxDelay(30*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(IsRetryable),
		retry.LastErrorOnly(true),
	)
}
