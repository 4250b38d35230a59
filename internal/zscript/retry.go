package zscript

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"zbridge/internal/logging"
	"zbridge/internal/services"
)

// RetryHost re-runs a script when the host was unreachable or timed out.
// Nothing in the bridge retries on its own; callers opt in by wrapping their
// Host with NewRetryHost.
type RetryHost struct {
	inner    Host
	attempts int
	delay    time.Duration
	logger   *slog.Logger
}

// NewRetryHost wraps inner. attempts below two return inner unchanged.
func NewRetryHost(inner Host, attempts int, delay time.Duration, logger *slog.Logger) Host {
	if attempts < 2 {
		return inner
	}
	return &RetryHost{
		inner:    inner,
		attempts: attempts,
		delay:    delay,
		logger:   logging.NewComponentLogger(logger, component),
	}
}

// Run executes the script up to the configured number of attempts.
func (r *RetryHost) Run(ctx context.Context, script *Script) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = r.inner.Run(ctx, script)
		if err == nil || !retryable(err) || attempt == r.attempts {
			return err
		}
		logging.WarnWithContext(r.logger, "host script failed, retrying", "host_retry",
			logging.Int("attempt", attempt),
			logging.Int("max_attempts", r.attempts),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.Hint(err)),
			logging.String(logging.FieldImpact, "script will be re-sent to the host"),
		)
		if r.delay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.delay):
			}
		}
	}
	return err
}

func retryable(err error) bool {
	return errors.Is(err, services.ErrHostUnavailable) || errors.Is(err, services.ErrTimeout)
}
