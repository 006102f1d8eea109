// Package config provides configuration loading and management for the
// application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// HTTP server port
	Port string `yaml:"port"`

	// Upstream yields feed endpoint
	FeedURL string `yaml:"feed_url"`

	// Maximum age of the pool snapshot before a read triggers a refetch
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// Timeout for a single upstream feed call
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// Defaults applied when a query omits or mangles the numeric filters
	DefaultMinTVL float64 `yaml:"default_min_tvl"`
	DefaultMinAPY float64 `yaml:"default_min_apy"`

	// Snapshot guard thresholds (see internal/guard)
	MaxPoolCountDrop float64 `yaml:"max_pool_count_drop"`
	MaxTVLChange     float64 `yaml:"max_tvl_change"`

	// Rate limiting for the query endpoint
	RateLimitRPS   float64 `yaml:"rate_limit_rps"`
	RateLimitBurst int     `yaml:"rate_limit_burst"`

	// OpenTelemetry endpoint for observability, empty disables tracing
	OtelEndpoint string `yaml:"otel_endpoint"`

	// Optional rotating log file, empty logs to stderr only
	LogFile string `yaml:"log_file"`
}

// Load creates a Config from environment variables, then applies overrides
// from the YAML file named by CONFIG_FILE if one is set.
func Load() (Config, error) {
	cfg := Config{
		Port:             GetEnvOrDefault("PORT", "8080"),
		FeedURL:          GetEnvOrDefault("FEED_URL", "https://yields.llama.fi/pools"),
		CacheTTL:         GetEnvAsDuration("CACHE_TTL", 2*time.Minute),
		RequestTimeout:   GetEnvAsDuration("REQUEST_TIMEOUT", 15*time.Second),
		DefaultMinTVL:    GetEnvAsFloat("DEFAULT_MIN_TVL", 5_000_000),
		DefaultMinAPY:    GetEnvAsFloat("DEFAULT_MIN_APY", 0),
		MaxPoolCountDrop: GetEnvAsFloat("MAX_POOL_COUNT_DROP", 0.9),
		MaxTVLChange:     GetEnvAsFloat("MAX_TVL_CHANGE", 0.5),
		RateLimitRPS:     GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:   GetEnvAsInt("RATE_LIMIT_BURST", 20),
		OtelEndpoint:     GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		LogFile:          GetEnvOrDefault("LOG_FILE", ""),
	}

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// applyFile decodes a YAML overrides file on top of the receiver. Fields
// absent from the file keep their environment-derived values.
func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("cannot parse config file %s: %w", path, err)
	}
	return nil
}

// GetEnv retrieves an environment variable and whether it exists.
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default
// value if not set.
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a
// default value.
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a
// default value.
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a
// default value.
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a
// default value.
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
