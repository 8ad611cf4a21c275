// Package retry runs operations under a bounded exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/ajitpratap0/gridtable/pkg/errors"
	"github.com/ajitpratap0/gridtable/pkg/logger"
)

// Policy defines retry behavior
type Policy struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	Multiplier      float64       `yaml:"multiplier"`
	RandomizeFactor float64       `yaml:"randomize_factor"`
}

// DefaultPolicy waits 1s, 2s, 4s, 8s and 16s between six attempts
func DefaultPolicy() *Policy {
	return &Policy{
		MaxAttempts:  6,
		InitialDelay: time.Second,
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
}

// NoRetry returns a policy that runs the operation once
func NoRetry() *Policy {
	return &Policy{MaxAttempts: 1}
}

// Do runs fn until it succeeds, returns an error errors.IsRetryable rejects,
// or the attempts run out. Exhaustion is reported as a connection error
// wrapping the last failure.
func (p *Policy) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	return p.DoIf(ctx, op, fn, errors.IsRetryable)
}

// DoIf is Do with a caller-supplied retry condition
func (p *Policy) DoIf(ctx context.Context, op string, fn func(ctx context.Context) error, shouldRetry func(error) bool) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		logger.Warn("retrying after failure",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Wrapf(ctx.Err(), errors.ErrorTypeTimeout, "%s: retry cancelled", op)
		case <-timer.C:
		}
	}

	return errors.Wrapf(lastErr, errors.ErrorTypeConnection, "%s: all %d attempts failed", op, attempts).
		WithDetail("attempts", attempts)
}

// Delay returns the wait before retry number attempt+1
func (p *Policy) Delay(attempt int) time.Duration {
	mult := p.Multiplier
	if mult <= 0 {
		mult = 1
	}
	delay := float64(p.InitialDelay) * math.Pow(mult, float64(attempt))

	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.RandomizeFactor > 0 {
		delta := delay * p.RandomizeFactor
		delay = delay - delta + rand.Float64()*2*delta //nolint:gosec // G404: jitter needs no crypto randomness
	}
	return time.Duration(delay)
}
