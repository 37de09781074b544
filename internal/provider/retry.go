package provider

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/charmbracelet/log"

	"github.com/AbdelazizMoustafa10m/testsmith/internal/apperr"
	"github.com/AbdelazizMoustafa10m/testsmith/internal/logging"
)

// RetryConfig configures Retry.
type RetryConfig struct {
	// MaxAttempts is the total number of calls, including the first.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Multiplier grows the delay between attempts (default 2).
	Multiplier float64
	// JitterFactor in [0, 1] adds up to that fraction of the delay at random.
	JitterFactor float64
}

// DefaultRetryConfig returns 3 attempts starting at 2s, capped at 60s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		BaseDelay:    2 * time.Second,
		MaxDelay:     60 * time.Second,
		Multiplier:   2,
		JitterFactor: 0.1,
	}
}

// Delay returns the wait before attempt (1-based, so Delay(1) precedes the
// second call), without jitter.
func (c RetryConfig) Delay(attempt int) time.Duration {
	mult := c.Multiplier
	if mult <= 0 {
		mult = 2
	}
	d := float64(c.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if c.MaxDelay > 0 && d > float64(c.MaxDelay) {
		d = float64(c.MaxDelay)
	}
	return time.Duration(d)
}

// Retry calls fn until it succeeds, returns an error apperr.Recoverable
// rejects (or ErrMaxWaitsExceeded), or MaxAttempts calls have been made.
// The wait between attempts grows exponentially with jitter and stretches
// to a backend's RetryAfter when that is longer. Cancelling ctx stops the
// wait.
func Retry(ctx context.Context, cfg RetryConfig, logger *log.Logger, op string, fn func(ctx context.Context) error) error {
	logger = logging.OrDiscard(logger)
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			delay := withJitter(cfg.Delay(attempt-1), cfg.JitterFactor)
			if ra := apperr.RetryAfterOf(lastErr); ra > delay {
				delay = ra
			}
			logger.Warn("retrying", "op", op, "attempt", attempt, "delay", delay.Round(time.Millisecond), "error", lastErr)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !apperr.Recoverable(err) || errors.Is(err, ErrMaxWaitsExceeded) {
			return err
		}
	}
	return fmt.Errorf("%s: giving up after %d attempts: %w", op, attempts, lastErr)
}

func withJitter(d time.Duration, factor float64) time.Duration {
	if factor <= 0 || d <= 0 {
		return d
	}
	return d + time.Duration(rand.Float64()*factor*float64(d))
}
