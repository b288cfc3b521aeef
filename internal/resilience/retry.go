package resilience

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// jitterFraction spreads each backoff by ±25% so callers hitting the
// same outage do not retry in lockstep.
const jitterFraction = 0.25

// RetryConfig controls retry behavior for upstream fetches. Backoff
// doubles per attempt, capped at MaxBackoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first
	// try. 1 means no retries. Default: 3.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry. Default: 500ms.
	InitialBackoff time.Duration

	// MaxBackoff caps the per-attempt delay. Default: 30s.
	MaxBackoff time.Duration

	// Service and Operation label the retry log lines. Leaving Service
	// empty silences them.
	Service   string
	Operation string
}

// DefaultRetryConfig returns the retry policy used for listing fetches.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// Do runs fn until it succeeds, fails permanently, or exhausts
// cfg.MaxAttempts. Only errors IsTransient reports retryable are
// retried; a 404 or other permanent failure returns after the first
// attempt. Context cancellation stops the loop immediately.
func Do[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.withDefaults()

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(lastErr) {
			return zero, lastErr
		}
		if attempt == cfg.MaxAttempts-1 {
			break
		}

		delay := backoff(attempt, cfg)
		if cfg.Service != "" {
			zap.L().Warn("retrying after transient failure",
				zap.String("service", cfg.Service),
				zap.String("operation", cfg.Operation),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", delay),
				zap.Error(lastErr),
			)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, lastErr
		case <-timer.C:
		}
	}

	return zero, lastErr
}

func (cfg RetryConfig) withDefaults() RetryConfig {
	def := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	return cfg
}

func backoff(attempt int, cfg RetryConfig) time.Duration {
	delay := cfg.InitialBackoff << attempt
	if delay > cfg.MaxBackoff || delay <= 0 {
		delay = cfg.MaxBackoff
	}

	spread := float64(delay) * jitterFraction
	jittered := float64(delay) + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		return 0
	}
	return time.Duration(jittered)
}
