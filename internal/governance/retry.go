package governance

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/flowgate/flowgate/pkg/domain"
)

// RetryPolicy drives automatic re-execution of transient operation
// failures with exponential backoff.
type RetryPolicy struct {
	settings domain.RetrySettings
}

// NewRetryPolicy creates a retry policy, filling unset fields with
// defaults.
func NewRetryPolicy(settings domain.RetrySettings) *RetryPolicy {
	if settings.InitialDelayMs <= 0 {
		settings.InitialDelayMs = 1000
	}
	if settings.MaxDelayMs <= 0 {
		settings.MaxDelayMs = 60000
	}
	if settings.BackoffBase <= 0 {
		settings.BackoffBase = 2.0
	}
	return &RetryPolicy{settings: settings}
}

// Settings returns a copy of the policy settings.
func (rp *RetryPolicy) Settings() domain.RetrySettings {
	return rp.settings
}

// ShouldRetry reports whether the error is transient and the attempt
// budget allows another try. Attempt counts retries already performed,
// starting at zero.
func (rp *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= rp.settings.MaxRetries {
		return false
	}
	return IsRetryable(err)
}

// IsRetryable classifies an error as transient. Network and timeout
// failures always qualify; API failures qualify only for 408, 429 and
// 5xx responses.
func IsRetryable(err error) bool {
	derr := domain.AsError(err)
	if derr == nil {
		return false
	}
	switch derr.Type {
	case domain.TypeNetworkError, domain.TypeTimeoutError, domain.TypeRetryable:
		return true
	case domain.TypeAPIError:
		return derr.Recoverable
	default:
		return false
	}
}

// CalculateBackoff returns the delay before retry number attempt
// (zero-based), exponentially grown and capped, with multiplicative
// jitter of up to 10% in either direction.
func (rp *RetryPolicy) CalculateBackoff(attempt int) time.Duration {
	delayMs := float64(rp.settings.InitialDelayMs) * math.Pow(rp.settings.BackoffBase, float64(attempt))
	if delayMs > float64(rp.settings.MaxDelayMs) {
		delayMs = float64(rp.settings.MaxDelayMs)
	}
	if rp.settings.Jitter {
		// #nosec G404 - non-cryptographic random is fine for jitter
		delayMs *= 0.9 + rand.Float64()*0.2
	}
	return time.Duration(delayMs) * time.Millisecond
}

// backoffFor honours a server-provided Retry-After hint when it exceeds
// the computed backoff.
func (rp *RetryPolicy) backoffFor(err error, attempt int) time.Duration {
	backoff := rp.CalculateBackoff(attempt)
	if derr := domain.AsError(err); derr != nil && derr.RetryAfterMs > 0 {
		hinted := time.Duration(derr.RetryAfterMs) * time.Millisecond
		if hinted > backoff {
			backoff = hinted
		}
	}
	return backoff
}

// ExecuteWithRetry runs fn, retrying transient failures until the
// attempt budget is exhausted or the context is cancelled. The final
// error is the last attempt's error with retry context attached.
func (rp *RetryPolicy) ExecuteWithRetry(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, domain.NewCancellationError("execution cancelled")
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !rp.ShouldRetry(err, attempt) {
			break
		}

		timer := time.NewTimer(rp.backoffFor(err, attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, domain.NewCancellationError("execution cancelled during backoff")
		case <-timer.C:
		}
		timer.Stop()
	}

	derr := domain.AsError(lastErr)
	if derr == nil {
		derr = domain.NewExecutionError(lastErr.Error())
	}
	return nil, derr.WithContext("maxRetries", rp.settings.MaxRetries)
}
