package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testError struct {
	retryable bool
	delay     time.Duration
	hasDelay  bool
}

func (e *testError) Error() string { return "test error" }

func (e *testError) IsRetryable() bool { return e.retryable }

func (e *testError) SuggestedRetryDelay() (time.Duration, bool) { return e.delay, e.hasDelay }

// recordSleeps returns a sleeper that records delays without waiting
func recordSleeps(delays *[]time.Duration) Option {
	return WithSleep(func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return ctx.Err()
	})
}

func fixedJitter(v float64) Option {
	return WithJitterSource(func() float64 { return v })
}

func TestPresets(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"default", Default()},
		{"aggressive", Aggressive()},
		{"conservative", Conservative()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.GreaterOrEqual(t, tt.cfg.MaxDelay, tt.cfg.InitialDelay)
			assert.Greater(t, tt.cfg.BackoffMultiplier, 1.0)
			assert.NoError(t, tt.cfg.Validate())

			byName, err := Preset(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.cfg, byName)
		})
	}

	_, err := Preset("reckless")
	assert.Error(t, err)
}

func TestPresetValues(t *testing.T) {
	d := Default()
	assert.Equal(t, 3, d.MaxAttempts)
	assert.Equal(t, time.Second, d.InitialDelay)
	assert.Equal(t, 60*time.Second, d.MaxDelay)
	assert.Equal(t, 0.8, d.JitterMin)
	assert.Equal(t, 1.2, d.JitterMax)

	a := Aggressive()
	assert.Equal(t, 5, a.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, a.InitialDelay)
	assert.Equal(t, 1.5, a.BackoffMultiplier)

	c := Conservative()
	assert.Equal(t, 2, c.MaxAttempts)
	assert.Equal(t, 10*time.Second, c.MaxDelay)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"zero attempts", func(c *Config) { c.MaxAttempts = 0 }, true},
		{"max below initial", func(c *Config) { c.MaxDelay = c.InitialDelay / 2 }, true},
		{"shrinking backoff", func(c *Config) { c.BackoffMultiplier = 0.5 }, true},
		{"inverted jitter", func(c *Config) { c.JitterMin, c.JitterMax = 1.2, 0.8 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestExecuteSucceedsAfterRetryableFailures(t *testing.T) {
	var delays []time.Duration
	h := New(Default(), zerolog.Nop(), recordSleeps(&delays), fixedJitter(0.5))

	calls := 0
	got, err := Do(context.Background(), h, func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", &testError{retryable: true}
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 3, calls)
	assert.Len(t, delays, 2)
}

func TestExecuteNeverRetriesNonRetryable(t *testing.T) {
	var delays []time.Duration
	h := New(Default(), zerolog.Nop(), recordSleeps(&delays))

	want := &testError{retryable: false}
	calls := 0
	err := h.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return want
	}, nil)

	assert.Same(t, want, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, delays)
}

func TestExecuteReturnsLastErrorVerbatim(t *testing.T) {
	var delays []time.Duration
	h := New(Conservative(), zerolog.Nop(), recordSleeps(&delays))

	var last error
	calls := 0
	err := h.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		last = &testError{retryable: true}
		return last
	}, nil)

	assert.Same(t, last, err)
	assert.Equal(t, Conservative().MaxAttempts, calls)
	assert.Len(t, delays, Conservative().MaxAttempts-1)
}

func TestExecuteCustomPredicate(t *testing.T) {
	h := New(Default(), zerolog.Nop(), recordSleeps(new([]time.Duration)))
	plain := errors.New("plain")

	calls := 0
	err := h.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return plain
	}, func(error) bool { return true })

	assert.ErrorIs(t, err, plain)
	assert.Equal(t, 3, calls)
}

func TestExecutePlainErrorsAreNotRetried(t *testing.T) {
	h := New(Default(), zerolog.Nop(), recordSleeps(new([]time.Duration)))

	calls := 0
	err := h.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return errors.New("boom")
	}, nil)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecuteStopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := New(Default(), zerolog.Nop(), fixedJitter(0))

	calls := 0
	err := h.Execute(ctx, func(ctx context.Context) error {
		calls++
		cancel()
		return &testError{retryable: true}
	}, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDelay(t *testing.T) {
	cfg := Config{
		MaxAttempts:       5,
		InitialDelay:      time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2,
		JitterMin:         0.8,
		JitterMax:         1.2,
	}

	tests := []struct {
		name    string
		attempt int
		err     error
		jitter  float64
		want    time.Duration
	}{
		{"first backoff, low jitter", 0, &testError{retryable: true}, 0, 800 * time.Millisecond},
		{"second backoff, high end", 1, &testError{retryable: true}, 1, 2400 * time.Millisecond},
		{"third backoff, neutral jitter", 2, &testError{retryable: true}, 0.5, 4 * time.Second},
		{"clamped to max delay", 6, &testError{retryable: true}, 0.5, 10 * time.Second},
		{"suggested delay wins", 0, &testError{retryable: true, delay: 5 * time.Second, hasDelay: true}, 0.5, 5 * time.Second},
		{"suggested delay clamped", 0, &testError{retryable: true, delay: time.Minute, hasDelay: true}, 0.5, 10 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(cfg, zerolog.Nop(), fixedJitter(tt.jitter))
			got := h.Delay(tt.attempt, tt.err)
			assert.InDelta(t, float64(tt.want), float64(got), float64(time.Millisecond))
		})
	}
}

func TestDelayJitterStaysInRange(t *testing.T) {
	h := New(Default(), zerolog.Nop())
	for i := 0; i < 200; i++ {
		d := h.Delay(0, &testError{retryable: true})
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}
