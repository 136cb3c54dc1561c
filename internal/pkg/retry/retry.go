package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds a retried outbound call: each attempt gets its own timeout and
// failed attempts are retried with exponential backoff.
type Policy struct {
	Retries         int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy is 15s per attempt, 3 retries, backoff starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		Retries:         3,
		AttemptTimeout:  15 * time.Second,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
	}
}

// NewPolicy is DefaultPolicy with the given retry count and per-attempt timeout.
func NewPolicy(retries int, attemptTimeout time.Duration) Policy {
	p := DefaultPolicy()
	p.Retries = retries
	p.AttemptTimeout = attemptTimeout
	return p
}

// MaxDuration is the longest Do can run under p when every attempt times out
// and every backoff wait draws its upper bound.
func (p Policy) MaxDuration() time.Duration {
	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	initial, maxInterval := p.InitialInterval, p.MaxInterval
	if initial <= 0 {
		initial = backoff.DefaultInitialInterval
	}
	if maxInterval <= 0 {
		maxInterval = backoff.DefaultMaxInterval
	}
	total := time.Duration(retries+1) * p.AttemptTimeout
	interval := float64(initial)
	for i := 0; i < retries; i++ {
		if interval > float64(maxInterval) {
			interval = float64(maxInterval)
		}
		total += time.Duration(interval * (1 + backoff.DefaultRandomizationFactor))
		interval *= backoff.DefaultMultiplier
	}
	return total
}

type permanentError struct{ err error }

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent marks err as not worth retrying (bad recipient, auth failure).
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, returns a Permanent error, the retries are
// exhausted, or ctx is done. The last error is returned unwrapped.
func Do(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	exp := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		exp.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		exp.MaxInterval = p.MaxInterval
	}
	exp.MaxElapsedTime = 0

	retries := p.Retries
	if retries < 0 {
		retries = 0
	}
	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(retries)), ctx)

	return backoff.Retry(func() error {
		attemptCtx := ctx
		if p.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
			defer cancel()
		}
		err := op(attemptCtx)
		var perm *permanentError
		if errors.As(err, &perm) {
			return backoff.Permanent(perm.err)
		}
		return err
	}, b)
}
