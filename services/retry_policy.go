package services

import (
	"context"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to
// wait before the next one. Attempts are counted from 1.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Retryable reports whether err is worth another attempt. Nil means every error is.
	Retryable func(err error) bool
}

func NewRetryPolicy(maxAttempts int, delay time.Duration) RetryPolicy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return RetryPolicy{MaxAttempts: maxAttempts, Delay: delay}
}

// ShouldRetry reports whether another attempt follows attempt number attempt
// that failed with err, and the delay to wait first.
func (p RetryPolicy) ShouldRetry(attempt int, err error) (bool, time.Duration) {
	if err == nil || attempt >= p.MaxAttempts {
		return false, 0
	}
	if p.Retryable != nil && !p.Retryable(err) {
		return false, 0
	}
	return true, p.Delay
}

// Do runs op until it succeeds or the policy gives up. It returns the number
// of attempts made and the last error. A cancelled ctx stops the waiting
// between attempts, never an attempt in flight.
func (p RetryPolicy) Do(ctx context.Context, op func(attempt int) error) (int, error) {
	attempt := 0
	for {
		attempt++
		err := op(attempt)
		retry, delay := p.ShouldRetry(attempt, err)
		if !retry {
			return attempt, err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return attempt, err
			case <-timer.C:
			}
		}
	}
}
