package service

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
)

// RetryPolicy wraps a stage invocation with bounded retries and exponential
// backoff (delay = BaseDelay * 2^attempt). Non-retryable errors propagate
// without consuming a retry.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// Do runs fn with up to MaxRetries retries after the initial attempt. The
// returned count is the number of retries actually consumed, which is
// recorded on the job even when fn ultimately succeeds.
func (p RetryPolicy) Do(ctx context.Context, name string, fn func(context.Context) error) (int, error) {
	retries := -1
	operation := func() (struct{}, error) {
		retries++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		if !Retryable(err) {
			return struct{}{}, backoff.Permanent(err)
		}
		zerolog.Ctx(ctx).Warn().Err(err).Str("stage", name).Int("attempt", retries).Msg("retryable stage failure")
		return struct{}{}, err
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.BaseDelay
	bo.Multiplier = 2
	bo.RandomizationFactor = 0

	_, err := backoff.Retry(ctx, operation, backoff.WithBackOff(bo), backoff.WithMaxTries(uint(p.MaxRetries+1)))
	if retries < 0 {
		retries = 0
	}
	return retries, err
}
