package assembler

import (
	"context"
	"errors"
	"time"

	"github.com/ppiankov/schemaspectre/internal/generator"
)

const (
	defaultAttempts       = 3
	defaultInitialBackoff = 200 * time.Millisecond
	maxBackoff            = 5 * time.Second
)

type retryConfig struct {
	maxAttempts    int
	attemptTimeout time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	sleep          func(context.Context, time.Duration) error
}

func (cfg retryConfig) normalized() retryConfig {
	if cfg.maxAttempts <= 0 {
		cfg.maxAttempts = defaultAttempts
	}
	if cfg.initialBackoff <= 0 {
		cfg.initialBackoff = defaultInitialBackoff
	}
	if cfg.maxBackoff <= 0 {
		cfg.maxBackoff = maxBackoff
	}
	if cfg.sleep == nil {
		cfg.sleep = sleepWithContext
	}
	if cfg.maxBackoff < cfg.initialBackoff {
		cfg.maxBackoff = cfg.initialBackoff
	}
	return cfg
}

// totalBudget bounds one recommendation's calls including backoff.
func (cfg retryConfig) totalBudget() time.Duration {
	if cfg.attemptTimeout <= 0 {
		return 0
	}
	return cfg.attemptTimeout*time.Duration(cfg.maxAttempts) + cfg.maxBackoff
}

// executeWithRetry runs fn until it succeeds, fails permanently or runs out
// of attempts. Each attempt gets its own timeout. A Retry-After hint from the
// collaborator replaces the backoff when it is longer.
func executeWithRetry(ctx context.Context, cfg retryConfig, fn func(context.Context) error) (int, error) {
	cfg = cfg.normalized()
	backoff := cfg.initialBackoff

	var lastErr error
	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := contextError(ctx); err != nil {
			return attempt - 1, err
		}

		err := runAttempt(ctx, cfg.attemptTimeout, fn)
		if err == nil {
			return attempt, nil
		}
		lastErr = err
		if ctxErr := contextError(ctx); ctxErr != nil {
			return attempt, ctxErr
		}

		if !generator.IsRetryable(err) || attempt == cfg.maxAttempts {
			return attempt, err
		}

		wait := backoff
		if hint := generator.RetryAfterHint(err); hint > wait {
			wait = hint
		}
		if err := cfg.sleep(ctx, wait); err != nil {
			if ctxErr := contextError(ctx); ctxErr != nil {
				return attempt, ctxErr
			}
			return attempt, err
		}

		if backoff < cfg.maxBackoff {
			backoff *= 2
			if backoff > cfg.maxBackoff {
				backoff = cfg.maxBackoff
			}
		}
	}

	return cfg.maxAttempts, lastErr
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx)
}

func withTotalTimeoutContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return parent, func() {}
	}

	ctx, cancelCause := context.WithCancelCause(parent)
	timer := time.AfterFunc(timeout, func() {
		cancelCause(context.DeadlineExceeded)
	})

	return ctx, func() {
		timer.Stop()
		cancelCause(context.Canceled)
	}
}

func contextError(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if cause := context.Cause(ctx); cause != nil && !errors.Is(cause, context.Canceled) {
			return cause
		}
		return err
	}
	return nil
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return contextError(ctx)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
