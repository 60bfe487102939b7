// Package retry waits for infrastructure to come up at startup. Business
// retries are scheduled by the task engine, not here.
package retry

import (
	"context"
	"time"

	"github.com/avast/retry-go/v4"
)

type Config struct {
	MaxAttempts  uint
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Retryable reports whether err is worth another attempt. Nil retries
	// every error.
	Retryable func(err error) bool
	// OnRetry is called after every failed attempt that will be retried.
	OnRetry func(attempt uint, err error)
}

// Do calls fn until it succeeds, the attempts run out, ctx is done or fn
// returns an error Retryable rejects. Delays grow exponentially up to
// MaxDelay. The last error is returned.
func Do(ctx context.Context, cfg Config, fn func() error) error {
	attempts := cfg.MaxAttempts
	if attempts == 0 {
		attempts = 1
	}
	opts := []retry.Option{
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(cfg.InitialDelay),
		retry.MaxDelay(cfg.MaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	}
	if cfg.Retryable != nil {
		opts = append(opts, retry.RetryIf(cfg.Retryable))
	}
	if cfg.OnRetry != nil {
		opts = append(opts, retry.OnRetry(func(n uint, err error) {
			cfg.OnRetry(n+1, err)
		}))
	}
	return retry.Do(fn, opts...)
}
