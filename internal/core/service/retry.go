package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// RetryPolicy waits a constant Interval between attempts. MaxRetries of 0
// retries forever.
type RetryPolicy struct {
	Interval   time.Duration
	MaxRetries uint64
}

func (p RetryPolicy) NewBackOff() backoff.BackOff {
	var b backoff.BackOff = backoff.NewConstantBackOff(p.Interval)
	if p.MaxRetries > 0 {
		b = backoff.WithMaxRetries(b, p.MaxRetries)
	}
	return b
}

// Do runs op until it succeeds, the policy gives up or ctx is done.
func (p RetryPolicy) Do(ctx context.Context, op func() error, notify func(err error, next time.Duration)) error {
	err := backoff.RetryNotify(op, backoff.WithContext(p.NewBackOff(), ctx), notify)
	if err != nil && ctx.Err() == nil && p.MaxRetries > 0 {
		return errors.Join(ErrRetriesExhausted, err)
	}
	return err
}
