// Package config provides configuration loading and validation for the
// matching service. It uses koanf to merge environment variables with
// optional file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/onnwee/kindred/internal/match"
)

// Config holds all configuration values for the matching service.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Database
	DatabaseURL string `koanf:"database_url"`

	// Redis geo index. Optional: when Addr is empty the service falls back
	// to the repository scan index.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"`
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`
	TracingInsecure   bool    `koanf:"tracing_insecure"`

	// RefreshInterval is the period between cache refresh cycles.
	RefreshInterval time.Duration `koanf:"refresh_interval"`

	// Weights and Tuning come from the optional "match" block of the config
	// file. Missing blocks use the engine defaults.
	Weights match.Weights
	Tuning  match.Tuning
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")
	ErrInvalidPort        = errors.New("PORT must be a valid integer")
	ErrInvalidEnv         = errors.New("ENV must be development, staging, or production")
	ErrInvalidSampleRate  = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
)

// Default values for non-secret configuration.
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultTracingExporter = "otlp-grpc"
	DefaultSampleRate      = 0.1
	DefaultRefreshInterval = match.DefaultRefreshInterval
)

// Load reads configuration from environment variables and an optional config
// file. Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error
// is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error

	// Load from YAML file first if provided (lower precedence)
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	// Try KINDRED_PORT first, then PORT for container platform compatibility
	port, portErr := getEnvIntOrDefaultMulti([]string{"KINDRED_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if portErr != nil {
		loadErrs = append(loadErrs, portErr)
	}

	redisDB, redisDBErr := getEnvIntOrDefault("REDIS_DB", k.Int("redis_db"), 0)
	if redisDBErr != nil {
		loadErrs = append(loadErrs, redisDBErr)
	}

	sampleRate, sampleErr := getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultSampleRate)
	if sampleErr != nil {
		loadErrs = append(loadErrs, sampleErr)
	}

	refreshInterval := DefaultRefreshInterval
	if v := k.Duration("refresh_interval"); v > 0 {
		refreshInterval = v
	}
	if val := os.Getenv("REFRESH_INTERVAL"); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("REFRESH_INTERVAL must be a valid duration: %w", err))
		} else {
			refreshInterval = d
		}
	}

	// Build config struct, with env vars taking precedence over file values
	cfg := &Config{
		Port:              port,
		Env:               getEnvOrDefaultMulti([]string{"KINDRED_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:       getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisAddr:         getEnvOrKoanf("REDIS_ADDR", k, "redis_addr"),
		RedisPassword:     getEnvOrKoanf("REDIS_PASSWORD", k, "redis_password"),
		RedisDB:           redisDB,
		TracingEnabled:    getEnvBoolOrKoanf("TRACING_ENABLED", k, "tracing_enabled"),
		TracingExporter:   getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:   getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		TracingSampleRate: sampleRate,
		TracingInsecure:   getEnvBoolOrKoanf("TRACING_INSECURE", k, "tracing_insecure"),
		RefreshInterval:   refreshInterval,
		Weights:           match.DefaultWeights(),
		Tuning:            match.DefaultTuning(),
	}

	// Scoring weights and tuning are file-only. Only unmarshal present
	// blocks so absent ones keep the defaults.
	if k.Exists("match.weights") {
		if err := k.Unmarshal("match.weights", &cfg.Weights); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("failed to parse match.weights: %w", err))
		}
	}
	if k.Exists("match.tuning") {
		if err := k.Unmarshal("match.tuning", &cfg.Tuning); err != nil {
			loadErrs = append(loadErrs, fmt.Errorf("failed to parse match.tuning: %w", err))
		}
	}

	// Validate and collect errors
	errs := cfg.Validate()
	errs = append(loadErrs, errs...)

	return cfg, errs
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvBoolOrKoanf returns the environment variable as bool if set,
// otherwise the koanf value. Unrecognized env values read as false.
func getEnvBoolOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) bool {
	if val := os.Getenv(envKey); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return k.Bool(koanfKey)
}

// getEnvOrDefault returns the environment variable value if set, otherwise the koanf value, or default.
func getEnvOrDefault(envKey string, koanfVal string, defaultVal string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first non-empty value found, otherwise the koanf value, or default.
func getEnvOrDefaultMulti(envKeys []string, koanfVal string, defaultVal string) string {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			return val
		}
	}
	if koanfVal != "" {
		return koanfVal
	}
	return defaultVal
}

// getEnvIntOrDefault returns the environment variable as int if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, ErrInvalidPort)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
// Returns the first valid integer value found, otherwise the koanf value, or default.
// Returns an error if any environment variable is set but cannot be parsed as an integer.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, ErrInvalidPort)
			}
			return i, nil
		}
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvFloatOrDefault returns the environment variable as float64 if set, otherwise the koanf value, or default.
// Returns an error if the environment variable is set but cannot be parsed as a float.
func getEnvFloatOrDefault(envKey string, koanfVal float64, defaultVal float64) (float64, error) {
	if val := os.Getenv(envKey); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid float: %w", envKey, err)
		}
		return f, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks that all required configuration values are present and
// well-formed. Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.DatabaseURL == "" {
		errs = append(errs, ErrMissingDatabaseURL)
	}
	switch c.Env {
	case "development", "staging", "production":
	default:
		errs = append(errs, fmt.Errorf("%w: got %q", ErrInvalidEnv, c.Env))
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("%w: got %f", ErrInvalidSampleRate, c.TracingSampleRate))
	}
	if err := c.Weights.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Tuning.Validate(); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                fmt.Sprintf("%d", c.Port),
		"env":                 c.Env,
		"database_url":        maskDatabaseURL(c.DatabaseURL),
		"redis_addr":          c.RedisAddr,
		"redis_password":      maskSecret(c.RedisPassword),
		"redis_db":            fmt.Sprintf("%d", c.RedisDB),
		"tracing_enabled":     fmt.Sprintf("%t", c.TracingEnabled),
		"tracing_exporter":    c.TracingExporter,
		"tracing_endpoint":    c.TracingEndpoint,
		"tracing_sample_rate": fmt.Sprintf("%g", c.TracingSampleRate),
		"refresh_interval":    c.RefreshInterval.String(),
	}
}

// maskSecret masks a secret value, showing only the first 4 characters followed by ****
// If the secret is shorter than 8 characters, it's fully masked.
func maskSecret(s string) string {
	if s == "" {
		return "<not set>"
	}
	if len(s) < 8 {
		return "****"
	}
	return s[:4] + "****"
}

// maskDatabaseURL masks the password in a database URL.
// Supports both postgres:// and postgresql:// schemes.
func maskDatabaseURL(s string) string {
	if s == "" {
		return "<not set>"
	}

	schemeEnd := strings.Index(s, "://")
	if schemeEnd == -1 {
		return maskSecret(s)
	}

	rest := s[schemeEnd+3:]
	atIndex := strings.Index(rest, "@")
	if atIndex == -1 {
		return s // No credentials in URL
	}

	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s // No password (only username)
	}

	scheme := s[:schemeEnd+3]
	user := rest[:colonIndex]
	hostAndPath := rest[atIndex:]

	return scheme + user + ":****" + hostAndPath
}
