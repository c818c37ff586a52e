package retry

import (
	"fmt"
	"strings"
	"time"
)

// Config controls how many attempts are made and how long to wait between them
type Config struct {
	MaxAttempts       int
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterMin         float64
	JitterMax         float64
}

// Default returns the configuration used for regular API calls
func Default() Config {
	return Config{
		MaxAttempts:       3,
		InitialDelay:      time.Second,
		MaxDelay:          60 * time.Second,
		BackoffMultiplier: 2.0,
		JitterMin:         0.8,
		JitterMax:         1.2,
	}
}

// Aggressive retries more often with shorter waits
func Aggressive() Config {
	return Config{
		MaxAttempts:       5,
		InitialDelay:      500 * time.Millisecond,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 1.5,
		JitterMin:         0.8,
		JitterMax:         1.2,
	}
}

// Conservative gives up quickly
func Conservative() Config {
	return Config{
		MaxAttempts:       2,
		InitialDelay:      2 * time.Second,
		MaxDelay:          10 * time.Second,
		BackoffMultiplier: 2.0,
		JitterMin:         0.8,
		JitterMax:         1.2,
	}
}

// Preset returns the named preset: default, aggressive or conservative
func Preset(name string) (Config, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return Default(), nil
	case "aggressive":
		return Aggressive(), nil
	case "conservative":
		return Conservative(), nil
	default:
		return Config{}, fmt.Errorf("unknown retry preset: %s", name)
	}
}

// Validate checks the configuration for values that would break backoff
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.InitialDelay < 0 || c.MaxDelay < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.MaxDelay < c.InitialDelay {
		return fmt.Errorf("max delay %s is below initial delay %s", c.MaxDelay, c.InitialDelay)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1, got %g", c.BackoffMultiplier)
	}
	if c.JitterMin <= 0 || c.JitterMax < c.JitterMin {
		return fmt.Errorf("invalid jitter range %g-%g", c.JitterMin, c.JitterMax)
	}
	return nil
}
