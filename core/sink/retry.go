package sink

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy bounds repeated attempts of one store operation with
// exponential backoff. MaxAttempts counts the first attempt too.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy matches the store defaults used when the configuration
// leaves the retry section empty.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Execute runs the operation until it succeeds, returns a permanent error
// (wrap with backoff.Permanent), the attempt budget is spent, or ctx is done.
// Cancellation is only observed between attempts; an attempt already running
// finishes on its own budget.
func (p RetryPolicy) Execute(ctx context.Context, operation func() error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	curve := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		curve.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		curve.MaxInterval = p.MaxInterval
	}
	curve.MaxElapsedTime = 0

	bounded := backoff.WithContext(backoff.WithMaxRetries(curve, uint64(attempts-1)), ctx)
	return backoff.Retry(operation, bounded)
}

// Permanent marks an error as non-retryable for Execute.
func Permanent(err error) error {
	return backoff.Permanent(err)
}
