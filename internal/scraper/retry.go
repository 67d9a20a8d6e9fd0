package scraper

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/JustJay7/courtlight/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy retries an operation on any error with exponential backoff and
// full jitter until a wall-clock budget is spent.
//
// The portal gives no usable distinction between transient and permanent
// failures, so parse errors are retried the same way as network errors. A
// persistent markup change therefore surfaces only once the budget runs out.
type RetryPolicy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Budget    time.Duration
	Logger    *logger.Logger
}

// DefaultRetryPolicy matches the portal's observed failure modes.
func DefaultRetryPolicy(log *logger.Logger) RetryPolicy {
	return RetryPolicy{
		BaseDelay: time.Second,
		MaxDelay:  time.Minute,
		Budget:    120 * time.Second,
		Logger:    log,
	}
}

// Retry runs fn under the policy. Context cancellation stops retrying
// immediately; any other error is retried until the budget is spent, after
// which the last error is returned.
func Retry[T any](ctx context.Context, p RetryPolicy, operation string, fn func(context.Context) (T, error)) (T, error) {
	attempt := 0
	op := func() (T, error) {
		attempt++
		res, err := fn(ctx)
		if err != nil && ctx.Err() != nil {
			return res, backoff.Permanent(ctx.Err())
		}
		return res, err
	}

	notify := func(err error, wait time.Duration) {
		if p.Logger != nil {
			p.Logger.Warn("Operation failed, retrying",
				"operation", operation,
				"attempt", attempt,
				"wait", wait.String(),
				"error", err,
			)
		}
	}

	res, err := backoff.RetryNotifyWithData(op, backoff.WithContext(p.newBackOff(), ctx), notify)
	if err != nil {
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			err = perm.Err
		}
		return res, &RetryError{Operation: operation, Attempts: attempt, Err: err}
	}
	return res, nil
}

// RetryError is returned once an operation has exhausted its budget.
type RetryError struct {
	Operation string
	Attempts  int
	Err       error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("%s: giving up after %d attempts: %v", e.Operation, e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

func (p RetryPolicy) newBackOff() *fullJitterBackOff {
	base := p.BaseDelay
	if base <= 0 {
		base = time.Second
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = time.Minute
	}
	return &fullJitterBackOff{
		base:     base,
		maxDelay: maxDelay,
		budget:   p.Budget,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// fullJitterBackOff yields a uniformly random wait in [0, min(maxDelay, base*2^n)]
// and clamps each wait to the budget left, so the final attempt lands at the
// budget boundary and the next call returns backoff.Stop.
type fullJitterBackOff struct {
	base     time.Duration
	maxDelay time.Duration
	budget   time.Duration

	mu      sync.Mutex
	rnd     *rand.Rand
	attempt int
	start   time.Time
}

func (b *fullJitterBackOff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.attempt = 0
	b.start = time.Now()
}

func (b *fullJitterBackOff) NextBackOff() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	elapsed := time.Since(b.start)
	if elapsed >= b.budget {
		return backoff.Stop
	}

	ceiling := b.maxDelay
	if b.attempt < 62 {
		if d := b.base << uint(b.attempt); d > 0 && d < ceiling {
			ceiling = d
		}
	}
	b.attempt++

	wait := time.Duration(b.rnd.Int63n(int64(ceiling) + 1))
	if remaining := b.budget - elapsed; wait > remaining {
		wait = remaining
	}
	return wait
}
