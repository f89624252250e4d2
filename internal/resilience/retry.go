package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls exponential backoff with jitter.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first. Default: 3.
	Attempts int
	// Backoff is the delay before the first retry. Default: 500ms.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default: 10s.
	MaxBackoff time.Duration
	// Jitter is the ± fraction applied to each delay. Default: 0.2.
	Jitter float64
	// Retryable decides whether an error is retried. Default: IsTransient.
	Retryable func(error) bool
	// Op names the operation in retry logs.
	Op string
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.Attempts <= 0 {
		c.Attempts = 3
	}
	if c.Backoff <= 0 {
		c.Backoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 10 * time.Second
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	} else if c.Jitter == 0 {
		c.Jitter = 0.2
	}
	if c.Retryable == nil {
		c.Retryable = IsTransient
	}
	return c
}

// Retry runs fn until it succeeds, returns a non-retryable error, the
// attempts are exhausted, or ctx is done.
func Retry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	cfg = cfg.withDefaults()

	var err error
	for attempt := 0; attempt < cfg.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil || !cfg.Retryable(err) || attempt == cfg.Attempts-1 {
			return err
		}

		delay := backoff(attempt, cfg)
		zap.L().Debug("resilience: retrying",
			zap.String("op", cfg.Op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	d := min(float64(cfg.Backoff)*math.Pow(2, float64(attempt)), float64(cfg.MaxBackoff))
	d += (rand.Float64()*2 - 1) * d * cfg.Jitter
	return time.Duration(max(d, 0))
}
