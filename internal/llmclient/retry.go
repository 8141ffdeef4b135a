// Package llmclient adapts outbound calls to the embedding and generation
// providers used by the matching and roadmap pipeline.
package llmclient

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"
)

// ErrRetriesExhausted is returned when all retry attempts fail on a
// transient error.
var ErrRetriesExhausted = fmt.Errorf("upstream call failed after all retry attempts")

// retrySchedule is the embedding-call backoff: start at ~1s, double each
// attempt, 5 attempts total, ±20% jitter applied to every delay.
const (
	retryAttempts  = 5
	retryBaseDelay = 1 * time.Second
	retryMultiplier = 2.0
	retryJitter     = 0.20
)

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "503")
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

func jittered(d time.Duration) time.Duration {
	delta := float64(d) * retryJitter
	offset := (rand.Float64()*2 - 1) * delta
	return d + time.Duration(offset)
}

// withRetry executes fn up to retryAttempts times total, applying the
// embedding retry schedule described in the spec: ~1s, ~2s, ~4s, ~8s
// between attempts, each jittered ±20%. Only transient/rate-limit errors
// are retried; any other error returns immediately.
func withRetry[T any](ctx context.Context, operation string, fn func() (T, error)) (T, error) {
	delay := retryBaseDelay
	var result T
	var err error

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		result, err = fn()
		if err == nil {
			if attempt > 1 {
				slog.Info("llmclient retry succeeded", "operation", operation, "attempt", attempt)
			}
			return result, nil
		}

		if !isRetryableError(err) {
			return result, err
		}
		if attempt == retryAttempts {
			break
		}

		wait := jittered(delay)
		slog.Warn("llmclient transient error, retrying",
			"operation", operation,
			"attempt", attempt,
			"delay_ms", wait.Milliseconds(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			var zero T
			return zero, fmt.Errorf("%s: context cancelled during retry: %w", operation, ctx.Err())
		case <-time.After(wait):
		}

		delay = time.Duration(float64(delay) * retryMultiplier)
	}

	var zero T
	slog.Error("llmclient retries exhausted", "operation", operation, "attempts", retryAttempts)
	return zero, fmt.Errorf("%s: %w: %v", operation, ErrRetriesExhausted, err)
}
