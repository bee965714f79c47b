package asr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"recap/internal/services"
)

const (
	defaultCallTimeout   = 90 * time.Second
	defaultRetryAttempts = 3
	defaultRetryBase     = 500 * time.Millisecond
	defaultRetryMax      = 15 * time.Second
)

// retryPolicy bounds external provider calls: a hard per-call timeout plus
// exponential backoff on transient failures. Client errors (4xx, except 408
// and 429) propagate immediately.
type retryPolicy struct {
	callTimeout time.Duration
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
	sleeper     func(time.Duration)
}

func newRetryPolicy(timeoutSeconds, attempts, baseMS int) retryPolicy {
	policy := retryPolicy{
		callTimeout: defaultCallTimeout,
		maxAttempts: defaultRetryAttempts,
		baseDelay:   defaultRetryBase,
		maxDelay:    defaultRetryMax,
	}
	if timeoutSeconds > 0 {
		policy.callTimeout = time.Duration(timeoutSeconds) * time.Second
	}
	if attempts > 0 {
		policy.maxAttempts = attempts
	}
	if baseMS > 0 {
		policy.baseDelay = time.Duration(baseMS) * time.Millisecond
	}
	return policy
}

// do runs op under the policy. op receives a context bounded by the per-call
// timeout and must return the classified error for one attempt.
func (p retryPolicy) do(ctx context.Context, provider string, op func(context.Context) error) error {
	var lastErr error
	delay := p.baseDelay
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, p.callTimeout)
		lastErr = op(callCtx)
		cancel()
		if lastErr == nil {
			return nil
		}
		if !retryable(lastErr) || attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		if next := delay * 2; next <= p.maxDelay {
			delay = next
		} else {
			delay = p.maxDelay
		}
	}
	if retryable(lastErr) {
		return services.Wrap(services.ErrTransient, Stage, provider,
			fmt.Sprintf("failed after %d attempts", p.maxAttempts), lastErr)
	}
	return lastErr
}

func (p retryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if services.IsRetryable(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	return false
}

// classifyStatus converts an HTTP response code into the adapter's error
// taxonomy: 408/429/5xx are transient, other 4xx are permanent.
func classifyStatus(provider string, status int, body string) error {
	switch {
	case status < http.StatusBadRequest:
		return nil
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests,
		status >= http.StatusInternalServerError:
		return services.Wrap(services.ErrTransient, Stage, provider,
			fmt.Sprintf("http %d", status), errors.New(snippet(body)))
	case status == http.StatusNotFound:
		return services.Wrap(services.ErrNotFound, Stage, provider,
			fmt.Sprintf("http %d", status), nil)
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return services.Wrap(services.ErrConfiguration, Stage, provider,
			fmt.Sprintf("http %d: check credentials", status), nil)
	default:
		return services.Wrap(services.ErrValidation, Stage, provider,
			fmt.Sprintf("http %d", status), errors.New(snippet(body)))
	}
}

func snippet(body string) string {
	const limit = 200
	if len(body) > limit {
		return body[:limit] + "..."
	}
	return body
}
