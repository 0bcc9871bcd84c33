package llm

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig bounds the exponential backoff used when connecting to the
// provider. Only connection-phase failures are retried; once a stream has
// started delivering chunks, a failure is returned to the caller as-is.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches the provider's documented rate-limit backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    20 * time.Second,
	}
}

// HTTPError wraps a non-200 response from the provider.
type HTTPError struct {
	Status     int
	Body       string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string { return e.Body }

// retryable reports whether err warrants another attempt: 429, 5xx, or a
// context-independent network error.
func retryable(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Status == http.StatusTooManyRequests || httpErr.Status >= 500
	}
	return true
}

// ParseRetryAfter parses a Retry-After header value (seconds, the only form
// Anthropic sends) into a duration. An unparsable or absent header yields 0,
// signalling the caller should fall back to its own backoff schedule.
func ParseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// RetryDo runs fn, retrying on retryable errors with exponential backoff
// capped at cfg.MaxDelay. It honors ctx cancellation between attempts and an
// HTTPError's RetryAfter hint when present. A llm.RetryHook attached to ctx
// (see WithRetryHook) is invoked before every retry so a caller can surface
// progress to a waiting user.
func RetryDo[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	var zero T
	delay := cfg.BaseDelay
	hook := RetryHookFromContext(ctx)

	for attempt := 1; ; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		if attempt >= cfg.MaxAttempts || !retryable(err) {
			return zero, err
		}

		wait := delay
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
			wait = httpErr.RetryAfter
		}
		if hook != nil {
			hook(attempt, cfg.MaxAttempts, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}
