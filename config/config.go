package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/s0up4200/sc2kit/retry"
)

const (
	// TokenEnv holds the PandaScore API token
	TokenEnv = "PANDA_TOKEN"
	// AuthMethodEnv selects "query" or "bearer" authentication
	AuthMethodEnv = "AUTH_METHOD"

	envPrefix = "SC2KIT"
)

// Load loads the configuration from file and environment. Without an
// explicit configPath a missing config file is not an error.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()

	// Set default values
	setDefaults(v)
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".sc2kit"))
		}

		// Check /etc
		v.AddConfigPath("/etc/sc2kit/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || configPath != "" {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// PandaScore defaults
	v.SetDefault("pandascore.token", "")
	v.SetDefault("pandascore.auth_method", "bearer")
	v.SetDefault("pandascore.base_url", "https://api.pandascore.co")
	v.SetDefault("pandascore.timeout", 30*time.Second)
	v.SetDefault("pandascore.rate_limit", 0)
	v.SetDefault("pandascore.user_agent", "sc2kit")

	// Retry defaults
	v.SetDefault("retry.preset", "default")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.max_size", 100)
	v.SetDefault("cache.default_ttl", 5*time.Minute)

	// Filter defaults
	v.SetDefault("filter.presets", map[string]string{
		"koreans":   `Nationality == "KR"`,
		"best_of_5": `Games >= 5`,
		"streamed":  `HasStreams`,
	})

	// Display defaults
	v.SetDefault("display.timezone", "Local")
	v.SetDefault("display.show_details", false)

	// Update defaults
	v.SetDefault("update.repository", "s0up4200/sc2kit")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)
}

// bindEnv maps PANDA_TOKEN and AUTH_METHOD onto their keys and exposes every
// other key as SC2KIT_<SECTION>_<KEY>
func bindEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("pandascore.token", TokenEnv, envPrefix+"_PANDASCORE_TOKEN")
	_ = v.BindEnv("pandascore.auth_method", AuthMethodEnv, envPrefix+"_PANDASCORE_AUTH_METHOD")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	switch strings.ToLower(cfg.PandaScore.AuthMethod) {
	case "", "bearer", "query":
	default:
		return fmt.Errorf("invalid pandascore.auth_method: %s", cfg.PandaScore.AuthMethod)
	}

	if cfg.PandaScore.BaseURL == "" {
		return fmt.Errorf("pandascore.base_url is required")
	}
	if cfg.PandaScore.Timeout < 0 {
		return fmt.Errorf("pandascore.timeout must not be negative")
	}
	if cfg.PandaScore.RateLimit < 0 {
		return fmt.Errorf("pandascore.rate_limit must not be negative")
	}

	if _, err := cfg.Retry.Resolve(); err != nil {
		return err
	}

	if cfg.Cache.Enabled && cfg.Cache.MaxSize < 1 {
		return fmt.Errorf("cache.max_size must be at least 1, got %d", cfg.Cache.MaxSize)
	}
	if cfg.Cache.DefaultTTL < 0 {
		return fmt.Errorf("cache.default_ttl must not be negative")
	}

	for name, expression := range cfg.Filter.Presets {
		if strings.TrimSpace(expression) == "" {
			return fmt.Errorf("filter preset %q has an empty expression", name)
		}
	}

	if _, err := cfg.Display.Location(); err != nil {
		return err
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}

// Resolve returns the preset named by Preset with any non-zero field applied
// on top, validated.
func (r RetryConfig) Resolve() (retry.Config, error) {
	cfg, err := retry.Preset(r.Preset)
	if err != nil {
		return retry.Config{}, fmt.Errorf("invalid retry.preset: %w", err)
	}

	if r.MaxAttempts != 0 {
		cfg.MaxAttempts = r.MaxAttempts
	}
	if r.InitialDelay != 0 {
		cfg.InitialDelay = r.InitialDelay
	}
	if r.MaxDelay != 0 {
		cfg.MaxDelay = r.MaxDelay
	}
	if r.BackoffMultiplier != 0 {
		cfg.BackoffMultiplier = r.BackoffMultiplier
	}
	if r.JitterMin != 0 {
		cfg.JitterMin = r.JitterMin
	}
	if r.JitterMax != 0 {
		cfg.JitterMax = r.JitterMax
	}

	if err := cfg.Validate(); err != nil {
		return retry.Config{}, fmt.Errorf("invalid retry configuration: %w", err)
	}
	return cfg, nil
}

// Location loads the configured display timezone
func (d DisplayConfig) Location() (*time.Location, error) {
	if d.Timezone == "" || strings.EqualFold(d.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid display.timezone: %w", err)
	}
	return loc, nil
}
