package driver

import (
	"context"
	"math"
	"time"
)

// BackoffPolicy возвращает задержку перед следующим опросом.
// attempt — номер только что выполненного опроса (начиная с 1).
type BackoffPolicy func(attempt int) time.Duration

// ExponentialBackoff — задержка base * multiplier^(attempt-1), не больше maxDelay.
//
// multiplier < 1 считается равным 1 (фиксированная задержка),
// maxDelay <= 0 — без ограничения сверху (задержка насыщается на
// максимальном time.Duration и не переполняется).
func ExponentialBackoff(base time.Duration, multiplier float64, maxDelay time.Duration) BackoffPolicy {
	if multiplier < 1 {
		multiplier = 1
	}

	limit := maxDelay
	if limit <= 0 {
		limit = time.Duration(math.MaxInt64)
	}

	return func(attempt int) time.Duration {
		delay := min(base, limit)
		for i := 1; i < attempt; i++ {
			next := float64(delay) * multiplier
			if next >= float64(limit) {
				return limit
			}
			delay = time.Duration(next)
		}
		return delay
	}
}

// SleepFunc ждёт d или отмены контекста.
type SleepFunc func(ctx context.Context, d time.Duration) error

// sleepContext — SleepFunc по умолчанию.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
