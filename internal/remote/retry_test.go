package remote

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// scriptedSource returns the scripted errors in order, then succeeds.
type scriptedSource struct {
	errs  []error
	calls int
	block bool
}

func (s *scriptedSource) Fetch(ctx context.Context, path string) (*RawResponse, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.calls <= len(s.errs) {
		return nil, s.errs[s.calls-1]
	}
	return &RawResponse{Value: []Record{{"id": 1}}}, nil
}

func rateLimited(retryAfter time.Duration) error {
	return &StatusError{StatusCode: http.StatusTooManyRequests, Path: "items", RetryAfter: retryAfter}
}

func newTestRetrier(src Source, policy RetryPolicy) (*Retrier, *[]time.Duration) {
	var delays []time.Duration
	r := NewRetrier(src, policy).WithSleep(func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	})
	return r, &delays
}

func TestRetrier_ThreeRateLimitsThenSuccess(t *testing.T) {
	src := &scriptedSource{errs: []error{rateLimited(0), rateLimited(0), rateLimited(0)}}
	r, delays := newTestRetrier(src, DefaultRetryPolicy())

	resp, err := r.Fetch(context.Background(), "items")
	require.NoError(t, err)
	require.Len(t, resp.Value, 1)
	require.Equal(t, 4, src.calls)
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, *delays)
}

func TestRetrier_FourthFailureIsTerminal(t *testing.T) {
	src := &scriptedSource{errs: []error{rateLimited(0), rateLimited(0), rateLimited(0), rateLimited(0)}}
	r, delays := newTestRetrier(src, DefaultRetryPolicy())

	_, err := r.Fetch(context.Background(), "items")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Equal(t, http.StatusTooManyRequests, StatusCode(err))
	require.Len(t, *delays, 3)
	require.Equal(t, 4, src.calls)
}

func TestRetrier_PermanentFailuresAreNotRetried(t *testing.T) {
	for _, code := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			src := &scriptedSource{errs: []error{&StatusError{StatusCode: code, Path: "items"}}}
			r, delays := newTestRetrier(src, DefaultRetryPolicy())

			_, err := r.Fetch(context.Background(), "items")
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrRetriesExhausted)
			require.True(t, IsPermanent(err))
			require.Equal(t, 1, src.calls)
			require.Empty(t, *delays)
		})
	}
}

func TestRetrier_HonorsRetryAfterHint(t *testing.T) {
	src := &scriptedSource{errs: []error{rateLimited(7 * time.Second), rateLimited(time.Minute)}}
	r, delays := newTestRetrier(src, DefaultRetryPolicy())

	_, err := r.Fetch(context.Background(), "items")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{7 * time.Second, time.Minute}, *delays)
}

func TestRetrier_RetryAfterAboveMaxBackoffIsHonored(t *testing.T) {
	src := &scriptedSource{errs: []error{rateLimited(60 * time.Second)}}
	policy := DefaultRetryPolicy()
	policy.MaxBackoff = 5 * time.Second
	r, delays := newTestRetrier(src, policy)

	_, err := r.Fetch(context.Background(), "items")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{60 * time.Second}, *delays)
	require.Equal(t, 2, src.calls)
}

func TestRetrier_HintDoesNotResetSchedule(t *testing.T) {
	src := &scriptedSource{errs: []error{rateLimited(0), rateLimited(45 * time.Second), rateLimited(0)}}
	r, delays := newTestRetrier(src, DefaultRetryPolicy())

	_, err := r.Fetch(context.Background(), "items")
	require.NoError(t, err)
	require.Equal(t, []time.Duration{time.Second, 45 * time.Second, 4 * time.Second}, *delays)
}

func TestRetrier_AttemptTimeoutIsTransient(t *testing.T) {
	src := &scriptedSource{block: true}
	policy := DefaultRetryPolicy()
	policy.MaxRetries = 1
	policy.AttemptTimeout = 10 * time.Millisecond
	r, delays := newTestRetrier(src, policy)

	_, err := r.Fetch(context.Background(), "items")
	require.ErrorIs(t, err, ErrRetriesExhausted)
	require.Len(t, *delays, 1)
	require.Equal(t, 2, src.calls)
}

func TestRetrier_ParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &scriptedSource{errs: []error{rateLimited(0)}}
	r := NewRetrier(src, DefaultRetryPolicy()).WithSleep(func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	})

	_, err := r.Fetch(ctx, "items")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, src.calls)
}

func TestClassify(t *testing.T) {
	ctx := context.Background()
	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	require.Equal(t, KindTransient, Classify(ctx, &StatusError{StatusCode: http.StatusServiceUnavailable}))
	require.Equal(t, KindTransient, Classify(ctx, &StatusError{StatusCode: http.StatusBadGateway}))
	require.Equal(t, KindPermanent, Classify(ctx, &StatusError{StatusCode: http.StatusNotFound}))
	require.Equal(t, KindTransient, Classify(ctx, errAttemptTimeout))
	require.Equal(t, KindPermanent, Classify(ctx, errors.New("boom")))
	require.Equal(t, KindCanceled, Classify(canceled, rateLimited(0)))
}

func TestRetryPolicy_Schedule(t *testing.T) {
	b := DefaultRetryPolicy().newBackOff()
	b.Reset()

	var got []time.Duration
	for range 7 {
		got = append(got, b.NextBackOff())
	}
	require.Equal(t, []time.Duration{
		time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
		16 * time.Second, 30 * time.Second, 30 * time.Second,
	}, got)
}

func TestStatusError_Hint(t *testing.T) {
	err := &StatusError{StatusCode: http.StatusNotFound, Path: "widgets"}
	require.Contains(t, err.Hint(), "list available entities")
	require.Contains(t, err.Error(), "404")
}
