package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"dyfav/pkg/config"
	errs "dyfav/pkg/errors"
	"dyfav/pkg/logger"
)

// Operation is one attempt of a retryable unit of work
type Operation func(ctx context.Context) error

// OperationWithResult is an attempt that also produces a value
type OperationWithResult[T any] func(ctx context.Context) (T, error)

// Policy is a bounded retry policy
type Policy struct {
	// MaxAttempts is the total number of attempts; values below 1 mean 1
	MaxAttempts int
	Backoff     BackoffStrategy
	// RetryIf determines if an error should be retried
	RetryIf func(error) bool
	// OnRetry is called before each retry wait
	OnRetry func(attempt int, err error, delay time.Duration)
	Logger  logger.Logger
}

// SingleAttempt returns a policy that never retries
func SingleAttempt() *Policy {
	return &Policy{MaxAttempts: 1, Backoff: &ConstantBackoff{}, RetryIf: DefaultRetryIf}
}

// FromConfig builds a policy from the retry section of the configuration
func FromConfig(cfg config.RetryConfig, log logger.Logger) *Policy {
	return &Policy{
		MaxAttempts: cfg.MaxAttempts,
		Backoff: &ExponentialBackoff{
			BaseDelay:    cfg.BaseDelay,
			MaxDelay:     cfg.MaxDelay,
			Multiplier:   cfg.Multiplier,
			JitterFactor: cfg.JitterFactor,
		},
		RetryIf: DefaultRetryIf,
		Logger:  log,
	}
}

// DefaultRetryIf retries typed errors whose type is retryable and never
// retries context cancellation.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var typed *errs.Error
	if errors.As(err, &typed) {
		return errs.IsRetryable(typed.Type)
	}
	return false
}

// ErrExhausted wraps the last error once all attempts were used
var ErrExhausted = errors.New("retry attempts exhausted")

// Do runs op until it succeeds, the error is not retryable, attempts run
// out, or ctx is cancelled.
func Do(ctx context.Context, p *Policy, op Operation) error {
	if p == nil {
		p = SingleAttempt()
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryIf := p.RetryIf
	if retryIf == nil {
		retryIf = DefaultRetryIf
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 1 && p.Logger != nil {
				p.Logger.DebugWithFields("Operation succeeded after retry", map[string]interface{}{
					"attempt": attempt,
				})
			}
			return nil
		}
		lastErr = err

		if !retryIf(err) || attempt == maxAttempts {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff.NextDelay(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}
		if p.Logger != nil {
			p.Logger.WarnWithFields("Retrying operation", map[string]interface{}{
				"attempt":      attempt,
				"max_attempts": maxAttempts,
				"delay_ms":     delay.Milliseconds(),
				"error":        err.Error(),
			})
		}
		if err := Wait(ctx, delay); err != nil {
			return fmt.Errorf("retry cancelled: %w", err)
		}
	}

	if maxAttempts > 1 && retryIf(lastErr) {
		return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, maxAttempts, lastErr)
	}
	return lastErr
}

// DoWithResult is Do for operations that return a value
func DoWithResult[T any](ctx context.Context, p *Policy, op OperationWithResult[T]) (T, error) {
	var result T
	err := Do(ctx, p, func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	})
	return result, err
}
