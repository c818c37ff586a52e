package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	PandaScore PandaScoreConfig `mapstructure:"pandascore"`
	Retry      RetryConfig      `mapstructure:"retry"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Filter     FilterConfig     `mapstructure:"filter"`
	Display    DisplayConfig    `mapstructure:"display"`
	Update     UpdateConfig     `mapstructure:"update"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// PandaScoreConfig holds PandaScore API connection details
type PandaScoreConfig struct {
	Token      string        `mapstructure:"token"`
	AuthMethod string        `mapstructure:"auth_method"`
	BaseURL    string        `mapstructure:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum number of requests per second; 0 disables pacing
	RateLimit float64 `mapstructure:"rate_limit"`
	UserAgent string  `mapstructure:"user_agent"`
}

// RetryConfig selects a retry preset and optionally overrides its fields.
// Zero values keep the preset's value.
type RetryConfig struct {
	Preset            string        `mapstructure:"preset"`
	MaxAttempts       int           `mapstructure:"max_attempts"`
	InitialDelay      time.Duration `mapstructure:"initial_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	JitterMin         float64       `mapstructure:"jitter_min"`
	JitterMax         float64       `mapstructure:"jitter_max"`
}

// CacheConfig sizes the in-memory response cache
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	MaxSize    int           `mapstructure:"max_size"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
}

// FilterConfig contains named filter expressions
type FilterConfig struct {
	Presets map[string]string `mapstructure:"presets"`
}

// DisplayConfig controls console output
type DisplayConfig struct {
	Timezone    string `mapstructure:"timezone"`
	ShowDetails bool   `mapstructure:"show_details"`
}

// UpdateConfig points self-update at a GitHub repository
type UpdateConfig struct {
	Repository string `mapstructure:"repository"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}
