package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

// ErrRetriesExhausted marks a transient failure that outlived the retry budget.
var ErrRetriesExhausted = errors.New("retries exhausted")

// Kind classifies a fetch failure for the retry policy.
type Kind int

const (
	// KindPermanent failures are returned immediately.
	KindPermanent Kind = iota
	// KindTransient failures are retried with backoff.
	KindTransient
	// KindCanceled means the caller's context ended; never retried.
	KindCanceled
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindCanceled:
		return "canceled"
	default:
		return "permanent"
	}
}

// StatusError is a non-2xx response from the remote source.
type StatusError struct {
	StatusCode int
	Path       string
	Body       string
	// RetryAfter is the server supplied retry hint, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("remote returned %d %s for %s", e.StatusCode, http.StatusText(e.StatusCode), e.Path)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Hint returns a remediation hint for the caller.
func (e *StatusError) Hint() string {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return "check filter, select and expand syntax against the entity's fields"
	case http.StatusUnauthorized:
		return "credentials were rejected; refresh the access token"
	case http.StatusForbidden:
		return "the credentials lack permission for this entity or company"
	case http.StatusNotFound:
		return "entity not found; list available entities"
	case http.StatusTooManyRequests:
		return "rate limited by the remote API; retry later or narrow the query"
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return "remote API is unavailable; retry later"
	}
	return ""
}

// RetriesExhaustedError wraps the last transient failure.
type RetriesExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrRetriesExhausted, e.Attempts, e.Err)
}

func (e *RetriesExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Err}
}

// errAttemptTimeout marks an attempt aborted by its own per-fetch timeout.
var errAttemptTimeout = errors.New("page fetch timed out")

// Classify maps an error onto the retry taxonomy. parent is the caller's
// context; a per-attempt deadline is transient while a parent cancellation
// is not.
func Classify(parent context.Context, err error) Kind {
	if err == nil {
		return KindPermanent
	}
	if parent != nil && parent.Err() != nil {
		return KindCanceled
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Transient() {
			return KindTransient
		}
		return KindPermanent
	}
	if errors.Is(err, errAttemptTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return KindTransient
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return KindTransient
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransient
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindTransient
	}
	return KindPermanent
}

// IsPermanent reports whether err is a non-retryable remote failure.
func IsPermanent(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && !se.Transient()
}

// StatusCode extracts the remote HTTP status, zero when err carries none.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}
