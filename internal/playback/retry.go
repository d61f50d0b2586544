package playback

import (
	"context"
	"math"
	"time"

	"github.com/v0xg/deskreplay/internal/platform"
)

// RetryPolicy controls how a failing action is re-attempted.
// With Multiplier 1 the delay between attempts is fixed.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration

	// Retryable classifies errors. Nil means everything platform.IsFatal
	// does not reject.
	Retryable func(error) bool
}

// DefaultRetryPolicy returns 3 attempts with a fixed 100ms delay between them
func DefaultRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		Multiplier:   1.0,
		MaxDelay:     time.Second,
	}
}

// ShouldRetry returns true if the error is retryable and the attempt count
// has not reached MaxAttempts.
func (p *RetryPolicy) ShouldRetry(err error, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return p.isRetryable(err)
}

func (p *RetryPolicy) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if p.Retryable != nil {
		return p.Retryable(err)
	}
	return !platform.IsFatal(err)
}

// NextDelay returns the delay after the given attempt number (1-indexed).
// The delay is InitialDelay * Multiplier^(attempt-1), capped at MaxDelay.
func (p *RetryPolicy) NextDelay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(delay)
}

// Execute runs fn until it succeeds, fails non-retryably, or MaxAttempts is
// reached. onRetry, when set, is called before each re-attempt. It returns
// the number of attempts made and the last error. A cancelled ctx ends the
// loop early with ctx.Err().
func (p *RetryPolicy) Execute(ctx context.Context, fn func(attempt int) error, onRetry func(attempt int, err error)) (int, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn(attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if !p.ShouldRetry(err, attempt) {
			return attempt, err
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if !sleepCtx(ctx, p.NextDelay(attempt)) {
			return attempt, ctx.Err()
		}
	}
	return maxAttempts, lastErr
}

// sleepCtx sleeps for d or until ctx is done. It reports whether the full
// duration elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
