package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/minjae-lim/daily-quotes/internal/domain"
)

const (
	// DefaultRetryMaxAttempts is the attempt budget (indices 0, 1, 2).
	DefaultRetryMaxAttempts = 3

	// DefaultRetryBaseDelay scales the linear backoff: the delay before
	// retry k is BaseDelay * (k+1), i.e. 1s then 2s.
	DefaultRetryBaseDelay = time.Second
)

// RetryPolicy re-invokes an operation that failed with a classified fetch
// error. It governs retrying the resolver call itself, for callers that want
// a fresh remote attempt rather than accepting a fallback; it does not apply
// inside the resolver's own tiers.
//
// All classifications, rate limits included, share the same attempt counter.
// After exhaustion the last error is returned as terminal for this request
// cycle; no background retry continues.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget. Defaults to 3.
	MaxAttempts int

	// BaseDelay scales the linear backoff. Defaults to 1s.
	BaseDelay time.Duration

	// Logger is the structured logger.
	Logger *slog.Logger
}

// Do runs fn up to MaxAttempts times, sleeping BaseDelay*(attempt) before
// each retry. Context cancellation stops retrying immediately and returns
// the context error.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultRetryMaxAttempts
	}

	baseDelay := p.BaseDelay
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			delay := baseDelay * time.Duration(attempt)

			logger.DebugContext(ctx, "retrying after failure",
				slog.Int("attempt", attempt+1),
				slog.Int("max_attempts", maxAttempts),
				slog.Duration("delay", delay),
			)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		logger.WarnContext(ctx, "attempt failed",
			slog.Int("attempt", attempt+1),
			slog.String("error_type", string(domain.ClassifyFetchError(lastErr))),
			slog.Any("error", lastErr),
		)
	}

	return lastErr
}
