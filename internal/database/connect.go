package database

import (
	"context"
	"fmt"
	"time"

	"playground-go/internal/playground"
)

// retryBaseDelay is the wait after the first failed attempt. Each further
// failure doubles it.
var retryBaseDelay = time.Second

// Connect calls open until it succeeds or maxAttempts calls have failed,
// waiting 1s, 2s, 4s, ... between attempts. The last error is returned
// wrapped with the attempt count.
func Connect[T any](ctx context.Context, maxAttempts int, logger playground.Logger, open func(context.Context) (T, error)) (T, error) {
	var zero T
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if logger == nil {
		logger = playground.NewNopLogger()
	}

	delay := retryBaseDelay
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		conn, err := open(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connected", "attempt", attempt)
			}
			return conn, nil
		}
		lastErr = err

		if attempt == maxAttempts {
			break
		}
		logger.Warn("database connection failed, retrying", "attempt", attempt, "max_attempts", maxAttempts, "delay", delay, "error", err)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, fmt.Errorf("connecting to database: %w", ctx.Err())
		case <-timer.C:
		}
		delay *= 2
	}

	logger.Error("database connection failed", "attempts", maxAttempts, "error", lastErr)
	return zero, fmt.Errorf("connecting to database after %d attempts: %w", maxAttempts, lastErr)
}
