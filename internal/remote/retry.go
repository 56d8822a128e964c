package remote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultMaxRetries     = 3
	defaultBaseBackoff    = time.Second
	defaultMaxBackoff     = 30 * time.Second
	defaultAttemptTimeout = 30 * time.Second
)

// RetryPolicy bounds retries of one page fetch.
type RetryPolicy struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries     int
	BaseBackoff    time.Duration
	MaxBackoff     time.Duration
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns 3 retries with 1s doubling backoff capped at 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     defaultMaxRetries,
		BaseBackoff:    defaultBaseBackoff,
		MaxBackoff:     defaultMaxBackoff,
		AttemptTimeout: defaultAttemptTimeout,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	n := p
	if n.MaxRetries < 0 {
		n.MaxRetries = 0
	}
	if n.BaseBackoff <= 0 {
		n.BaseBackoff = defaultBaseBackoff
	}
	if n.MaxBackoff <= 0 {
		n.MaxBackoff = defaultMaxBackoff
	}
	if n.AttemptTimeout <= 0 {
		n.AttemptTimeout = defaultAttemptTimeout
	}
	return n
}

// newBackOff builds the doubling schedule for one Fetch: BaseBackoff, then
// twice the previous delay, capped at MaxBackoff. Jitter is off so the
// schedule stays reproducible.
func (p RetryPolicy) newBackOff() *backoff.ExponentialBackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseBackoff,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         p.MaxBackoff,
	}
}

// hintedBackOff uses a server Retry-After hint for the next delay when one
// was seen, and the computed schedule otherwise. The hint is not capped by
// MaxBackoff; a server asking for 60s gets 60s.
//
// With sleep set the wait happens here and Retry's own timer gets zero.
type hintedBackOff struct {
	schedule backoff.BackOff
	hint     time.Duration
	last     time.Duration

	ctx   context.Context
	sleep SleepFunc
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.schedule.NextBackOff()
	if b.hint > 0 {
		next = b.hint
		b.hint = 0
	}
	b.last = next
	if b.sleep == nil || next == backoff.Stop {
		return next
	}
	if err := b.sleep(b.ctx, next); err != nil {
		return backoff.Stop
	}
	return 0
}

func (b *hintedBackOff) Reset() {
	b.schedule.Reset()
	b.hint = 0
	b.last = 0
}

// SleepFunc waits for d or until ctx ends.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Retrier wraps single fetches with the retry policy.
type Retrier struct {
	source Source
	policy RetryPolicy
	sleep  SleepFunc
}

// NewRetrier creates a retrier around source.
func NewRetrier(source Source, policy RetryPolicy) *Retrier {
	return &Retrier{source: source, policy: policy.normalized()}
}

// WithSleep replaces the backoff sleeper; tests use it to observe delays.
func (r *Retrier) WithSleep(fn SleepFunc) *Retrier {
	r.sleep = fn
	return r
}

// Policy returns the normalized policy.
func (r *Retrier) Policy() RetryPolicy { return r.policy }

// Fetch issues one fetch with per-attempt timeout, retrying transient
// failures. Permanent failures and parent cancellation return immediately.
func (r *Retrier) Fetch(ctx context.Context, path string) (*RawResponse, error) {
	schedule := &hintedBackOff{schedule: r.policy.newBackOff(), ctx: ctx, sleep: r.sleep}
	attempts := 0

	operation := func() (*RawResponse, error) {
		attempts++
		start := time.Now()
		resp, err := r.fetchOnce(ctx, path)
		observeFetch(start, err)
		if err == nil {
			return resp, nil
		}
		if Classify(ctx, err) != KindTransient {
			return nil, backoff.Permanent(err)
		}
		var se *StatusError
		if errors.As(err, &se) && se.RetryAfter > 0 {
			schedule.hint = se.RetryAfter
		}
		return nil, err
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(schedule),
		backoff.WithMaxTries(uint(r.policy.MaxRetries) + 1),
		backoff.WithNotify(func(err error, _ time.Duration) {
			fetchRetries.Inc()
			slog.Warn("[Pager] Transient fetch failure, retrying",
				"path", path,
				"attempt", attempts,
				"delay", schedule.last,
				"error", err,
			)
		}),
	}

	resp, err := backoff.Retry(ctx, operation, opts...)
	if err == nil {
		return resp, nil
	}

	// The last try comes back still wrapped when it was permanent.
	var permanent *backoff.PermanentError
	if errors.As(err, &permanent) {
		return nil, permanent.Unwrap()
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("retry wait aborted: %w", context.Cause(ctx))
	}
	if Classify(ctx, err) != KindTransient {
		return nil, err
	}
	fetchRetriesExhausted.Inc()
	slog.Error("[Pager] Retries exhausted", "path", path, "attempts", attempts, "error", err)
	return nil, &RetriesExhaustedError{Attempts: attempts, Err: err}
}

func (r *Retrier) fetchOnce(ctx context.Context, path string) (*RawResponse, error) {
	attemptCtx, cancel := context.WithTimeoutCause(ctx, r.policy.AttemptTimeout, errAttemptTimeout)
	defer cancel()

	resp, err := r.source.Fetch(attemptCtx, path)
	if err != nil {
		if ctx.Err() == nil && attemptCtx.Err() != nil {
			return nil, fmt.Errorf("%w after %s: %w", errAttemptTimeout, r.policy.AttemptTimeout, err)
		}
		return nil, err
	}
	return resp, nil
}
