// Package retry runs operations with exponential backoff and jitter.
//
// Whether an error is retried is decided by a predicate; the default one
// looks for an IsRetryable() method anywhere in the error chain. Errors that
// carry a SuggestedRetryDelay() override the computed backoff.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog"
)

type retryable interface {
	IsRetryable() bool
}

type delayHinter interface {
	SuggestedRetryDelay() (time.Duration, bool)
}

// IsRetryable is the default retry predicate
func IsRetryable(err error) bool {
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// Option configures a Handler
type Option func(*Handler)

// WithSleep replaces the wait between attempts
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(h *Handler) {
		h.sleep = sleep
	}
}

// WithJitterSource replaces the uniform [0,1) source used for jitter
func WithJitterSource(src func() float64) Option {
	return func(h *Handler) {
		h.random = src
	}
}

// Handler executes operations under a retry Config
type Handler struct {
	cfg    Config
	logger zerolog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
	random func() float64
}

// New creates a Handler
func New(cfg Config, logger zerolog.Logger, opts ...Option) *Handler {
	h := &Handler{
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		random: rand.Float64,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.cfg.MaxAttempts < 1 {
		h.cfg.MaxAttempts = 1
	}
	return h
}

// Config returns the handler's configuration
func (h *Handler) Config() Config {
	return h.cfg
}

// Execute calls op until it succeeds, shouldRetry rejects the error, or the
// attempts run out. A nil shouldRetry uses IsRetryable. The last error is
// returned unchanged.
func (h *Handler) Execute(ctx context.Context, op func(ctx context.Context) error, shouldRetry func(error) bool) error {
	if shouldRetry == nil {
		shouldRetry = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt < h.cfg.MaxAttempts; attempt++ {
		err := op(ctx)
		if err == nil {
			if attempt > 0 {
				h.logger.Info().Int("retries", attempt).Msg("Operation succeeded after retry")
			}
			return nil
		}
		lastErr = err

		if !shouldRetry(err) {
			h.logger.Debug().Err(err).Msg("Error is not retryable")
			return err
		}

		if attempt == h.cfg.MaxAttempts-1 {
			h.logger.Error().Int("max_attempts", h.cfg.MaxAttempts).Err(err).Msg("Max retry attempts reached")
			return err
		}

		delay := h.Delay(attempt, err)
		h.logger.Warn().
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Err(err).
			Msg("Attempt failed, retrying")

		if err := h.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return lastErr
}

// Do runs op through h with the default predicate and returns its value
func Do[T any](ctx context.Context, h *Handler, op func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := h.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	}, nil)
	return result, err
}

// Delay computes the wait after the given zero-based attempt failed with err.
// A suggested delay on err wins over exponential backoff; the result is
// clamped to MaxDelay and then scaled by jitter.
func (h *Handler) Delay(attempt int, err error) time.Duration {
	delay := h.backoff(attempt)

	var hint delayHinter
	if errors.As(err, &hint) {
		if suggested, ok := hint.SuggestedRetryDelay(); ok {
			delay = suggested
		}
	}

	delay = min(delay, h.cfg.MaxDelay)

	jitter := h.cfg.JitterMin + h.random()*(h.cfg.JitterMax-h.cfg.JitterMin)
	return time.Duration(float64(delay) * jitter)
}

func (h *Handler) backoff(attempt int) time.Duration {
	d := float64(h.cfg.InitialDelay) * math.Pow(h.cfg.BackoffMultiplier, float64(attempt))
	if d > float64(math.MaxInt64) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
