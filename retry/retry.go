// ABOUTME: Bounded exponential-backoff retry for external calls
// ABOUTME: Auth and configuration failures are permanent and never retried
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/harperreed/leadsync/errs"
)

// Policy bounds how often and how long an external call is retried.
type Policy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy retries three times, starting at half a second.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// None never retries.
func None() Policy {
	return Policy{}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, returns a permanent error, the policy is
// exhausted, or ctx is done. Auth and configuration errors stop immediately.
func Do(ctx context.Context, p Policy, logger *zap.Logger, name string, op func() error) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		eb.MaxInterval = p.MaxInterval
	}
	eb.MaxElapsedTime = 0

	b := backoff.WithContext(backoff.WithMaxRetries(eb, p.MaxRetries), ctx)

	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		switch errs.KindOf(err) {
		case errs.KindAuth, errs.KindConfig:
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		logger.Warn("retrying external call",
			zap.String("call", name),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	return backoff.RetryNotify(wrapped, b, notify)
}
