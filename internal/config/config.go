// Package config provides configuration loading and validation for the API
// server and the jobs binary. It uses koanf to merge environment variables
// with optional YAML file overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values.
type Config struct {
	// Server settings
	Port int    `koanf:"port"`
	Env  string `koanf:"env"`

	// Storage. An empty DatabaseURL selects in-memory repositories outside production.
	DatabaseURL string `koanf:"database_url"`
	RedisURL    string `koanf:"redis_url"`

	// Auth
	JWTSecret         string `koanf:"jwt_secret"`
	JWTPreviousSecret string `koanf:"jwt_previous_secret"` // accepted during key rotation
	InternalToken     string `koanf:"internal_token"`

	// Stripe
	StripeAPIKey        string `koanf:"stripe_api_key"`
	StripeWebhookSecret string `koanf:"stripe_webhook_secret"`

	// R2 (Cloudflare Object Storage)
	R2BucketName      string `koanf:"r2_bucket_name"`
	R2AccessKeyID     string `koanf:"r2_access_key_id"`
	R2SecretAccessKey string `koanf:"r2_secret_access_key"`
	R2Endpoint        string `koanf:"r2_endpoint"`
	R2PublicBaseURL   string `koanf:"r2_public_base_url"`
	R2MaxVideoSizeMB  int    `koanf:"r2_max_video_size_mb"`
	R2MaxImageSizeMB  int    `koanf:"r2_max_image_size_mb"`

	// Analytics and creator features
	AnalyticsTimezone string `koanf:"analytics_timezone"`
	GuidelinesVersion string `koanf:"guidelines_version"`

	// Background jobs
	PublishInterval   time.Duration `koanf:"publish_interval"`
	RollupInterval    time.Duration `koanf:"rollup_interval"`
	ReconcileInterval time.Duration `koanf:"reconcile_interval"`

	// Tracing
	TracingEnabled    bool    `koanf:"tracing_enabled"`
	TracingExporter   string  `koanf:"tracing_exporter"` // otlp-http or otlp-grpc
	TracingEndpoint   string  `koanf:"tracing_endpoint"`
	TracingSampleRate float64 `koanf:"tracing_sample_rate"`

	// Rate limits, requests per minute
	RateLimitGlobal   int `koanf:"rate_limit_global"`
	RateLimitTracking int `koanf:"rate_limit_tracking"`
	RateLimitTip      int `koanf:"rate_limit_tip"`

	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// Configuration validation errors.
var (
	ErrMissingDatabaseURL         = errors.New("DATABASE_URL is required in production")
	ErrMissingJWTSecret           = errors.New("JWT_SECRET is required")
	ErrMissingInternalToken       = errors.New("INTERNAL_TOKEN is required in production")
	ErrMissingStripeWebhookSecret = errors.New("STRIPE_WEBHOOK_SECRET is required when STRIPE_API_KEY is set")
	ErrMissingR2BucketName        = errors.New("R2_BUCKET_NAME is required")
	ErrMissingR2AccessKeyID       = errors.New("R2_ACCESS_KEY_ID is required")
	ErrMissingR2SecretAccessKey   = errors.New("R2_SECRET_ACCESS_KEY is required")
	ErrMissingR2Endpoint          = errors.New("R2_ENDPOINT is required")
	ErrInvalidPort                = errors.New("PORT must be a valid integer")
	ErrInvalidTimezone            = errors.New("ANALYTICS_TIMEZONE must be an IANA time zone")
	ErrInvalidInterval            = errors.New("job intervals must be positive durations")
	ErrInvalidTracingExporter     = errors.New("TRACING_EXPORTER must be otlp-http or otlp-grpc")
	ErrInvalidSampleRate          = errors.New("TRACING_SAMPLE_RATE must be between 0 and 1")
	ErrInvalidRateLimit           = errors.New("rate limits must be positive")
)

// Default values for non-secret configuration.
const (
	DefaultPort              = 8080
	DefaultEnv               = "development"
	DefaultR2MaxVideoSizeMB  = 100
	DefaultR2MaxImageSizeMB  = 10
	DefaultAnalyticsTimezone = "UTC"
	DefaultGuidelinesVersion = "1.0"
	DefaultPublishInterval   = time.Minute
	DefaultRollupInterval    = 24 * time.Hour
	DefaultReconcileInterval = 6 * time.Hour
	DefaultTracingExporter   = "otlp-http"
	DefaultTracingSampleRate = 0.1
	DefaultRateLimitGlobal   = 100
	DefaultRateLimitTracking = 300
	DefaultRateLimitTip      = 10
)

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are skipped and variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables and an optional config file.
// Environment variables take precedence over file values.
// Returns the loaded config and a slice of validation errors (empty if valid).
// If a config file path is provided and the file cannot be loaded, an error is returned.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	var loadErrs []error
	collect := func(err error) {
		if err != nil {
			loadErrs = append(loadErrs, err)
		}
	}

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	port, err := getEnvIntOrDefaultMulti([]string{"REELCAST_PORT", "PORT"}, k.Int("port"), DefaultPort)
	if err != nil {
		collect(fmt.Errorf("%w: %v", ErrInvalidPort, err))
	}

	cfg := &Config{
		Port:                port,
		Env:                 getEnvOrDefaultMulti([]string{"REELCAST_ENV", "ENV", "GO_ENV"}, k.String("env"), DefaultEnv),
		DatabaseURL:         getEnvOrKoanf("DATABASE_URL", k, "database_url"),
		RedisURL:            getEnvOrKoanf("REDIS_URL", k, "redis_url"),
		JWTSecret:           getEnvOrKoanf("JWT_SECRET", k, "jwt_secret"),
		JWTPreviousSecret:   getEnvOrKoanf("JWT_PREVIOUS_SECRET", k, "jwt_previous_secret"),
		InternalToken:       getEnvOrKoanf("INTERNAL_TOKEN", k, "internal_token"),
		StripeAPIKey:        getEnvOrKoanf("STRIPE_API_KEY", k, "stripe_api_key"),
		StripeWebhookSecret: getEnvOrKoanf("STRIPE_WEBHOOK_SECRET", k, "stripe_webhook_secret"),
		R2BucketName:        getEnvOrKoanf("R2_BUCKET_NAME", k, "r2_bucket_name"),
		R2AccessKeyID:       getEnvOrKoanf("R2_ACCESS_KEY_ID", k, "r2_access_key_id"),
		R2SecretAccessKey:   getEnvOrKoanf("R2_SECRET_ACCESS_KEY", k, "r2_secret_access_key"),
		R2Endpoint:          getEnvOrKoanf("R2_ENDPOINT", k, "r2_endpoint"),
		R2PublicBaseURL:     getEnvOrKoanf("R2_PUBLIC_BASE_URL", k, "r2_public_base_url"),
		AnalyticsTimezone:   getEnvOrDefault("ANALYTICS_TIMEZONE", k.String("analytics_timezone"), DefaultAnalyticsTimezone),
		GuidelinesVersion:   getEnvOrDefault("GUIDELINES_VERSION", k.String("guidelines_version"), DefaultGuidelinesVersion),
		TracingExporter:     getEnvOrDefault("TRACING_EXPORTER", k.String("tracing_exporter"), DefaultTracingExporter),
		TracingEndpoint:     getEnvOrKoanf("TRACING_ENDPOINT", k, "tracing_endpoint"),
		CORSAllowedOrigins:  getEnvListOrKoanf("CORS_ALLOWED_ORIGINS", k, "cors_allowed_origins"),
	}

	var ierr error
	cfg.R2MaxVideoSizeMB, ierr = getEnvIntOrDefault("R2_MAX_VIDEO_SIZE_MB", k.Int("r2_max_video_size_mb"), DefaultR2MaxVideoSizeMB)
	collect(ierr)
	cfg.R2MaxImageSizeMB, ierr = getEnvIntOrDefault("R2_MAX_IMAGE_SIZE_MB", k.Int("r2_max_image_size_mb"), DefaultR2MaxImageSizeMB)
	collect(ierr)
	cfg.RateLimitGlobal, ierr = getEnvIntOrDefault("RATE_LIMIT_GLOBAL", k.Int("rate_limit_global"), DefaultRateLimitGlobal)
	collect(ierr)
	cfg.RateLimitTracking, ierr = getEnvIntOrDefault("RATE_LIMIT_TRACKING", k.Int("rate_limit_tracking"), DefaultRateLimitTracking)
	collect(ierr)
	cfg.RateLimitTip, ierr = getEnvIntOrDefault("RATE_LIMIT_TIP", k.Int("rate_limit_tip"), DefaultRateLimitTip)
	collect(ierr)

	cfg.PublishInterval, ierr = getEnvDurationOrDefault("PUBLISH_INTERVAL", k.Duration("publish_interval"), DefaultPublishInterval)
	collect(ierr)
	cfg.RollupInterval, ierr = getEnvDurationOrDefault("ROLLUP_INTERVAL", k.Duration("rollup_interval"), DefaultRollupInterval)
	collect(ierr)
	cfg.ReconcileInterval, ierr = getEnvDurationOrDefault("RECONCILE_INTERVAL", k.Duration("reconcile_interval"), DefaultReconcileInterval)
	collect(ierr)

	cfg.TracingEnabled = k.Bool("tracing_enabled")
	if val := os.Getenv("TRACING_ENABLED"); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			cfg.TracingEnabled = true
		case "false", "0", "no", "off":
			cfg.TracingEnabled = false
		}
	}
	cfg.TracingSampleRate, ierr = getEnvFloatOrDefault("TRACING_SAMPLE_RATE", k.Float64("tracing_sample_rate"), DefaultTracingSampleRate)
	collect(ierr)

	errs := append(loadErrs, cfg.Validate()...)
	return cfg, errs
}

// IsProduction reports whether Env names a production deployment.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Location resolves AnalyticsTimezone.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.AnalyticsTimezone)
}

// getEnvOrKoanf returns the environment variable value if set, otherwise the koanf value.
func getEnvOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) string {
	if val := os.Getenv(envKey); val != "" {
		return val
	}
	return k.String(koanfKey)
}

// getEnvListOrKoanf reads a comma-separated env var, otherwise a YAML list.
func getEnvListOrKoanf(envKey string, k *koanf.Koanf, koanfKey string) []string {
	if val := os.Getenv(envKey); val != "" {
		var out []string
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	return k.Strings(koanfKey)
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
// A zero koanf value falls back to the default.
func getEnvIntOrDefault(envKey string, koanfVal int, defaultVal int) (int, error) {
	if val := os.Getenv(envKey); val != "" {
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// getEnvIntOrDefaultMulti tries multiple environment variable keys in order.
func getEnvIntOrDefaultMulti(envKeys []string, koanfVal int, defaultVal int) (int, error) {
	for _, key := range envKeys {
		if val := os.Getenv(key); val != "" {
			i, err := strconv.Atoi(val)
			if err != nil {
				return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
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

// getEnvDurationOrDefault parses Go duration strings such as "90s" or "1h".
func getEnvDurationOrDefault(envKey string, koanfVal time.Duration, defaultVal time.Duration) (time.Duration, error) {
	if val := os.Getenv(envKey); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			return 0, fmt.Errorf("%s must be a valid duration: %w", envKey, err)
		}
		return d, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return defaultVal, nil
}

// Validate checks required values and ranges.
// Returns a slice of validation errors (empty if valid).
func (c *Config) Validate() []error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, ErrMissingJWTSecret)
	}
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			errs = append(errs, ErrMissingDatabaseURL)
		}
		if c.InternalToken == "" {
			errs = append(errs, ErrMissingInternalToken)
		}
	}
	if c.StripeAPIKey != "" && c.StripeWebhookSecret == "" {
		errs = append(errs, ErrMissingStripeWebhookSecret)
	}

	// R2 configuration is optional. Only validate fields if any R2 value is set.
	if c.R2BucketName != "" || c.R2AccessKeyID != "" || c.R2SecretAccessKey != "" || c.R2Endpoint != "" {
		if c.R2BucketName == "" {
			errs = append(errs, ErrMissingR2BucketName)
		}
		if c.R2AccessKeyID == "" {
			errs = append(errs, ErrMissingR2AccessKeyID)
		}
		if c.R2SecretAccessKey == "" {
			errs = append(errs, ErrMissingR2SecretAccessKey)
		}
		if c.R2Endpoint == "" {
			errs = append(errs, ErrMissingR2Endpoint)
		}
	}

	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("%w: %v", ErrInvalidTimezone, err))
	}
	if c.PublishInterval <= 0 || c.RollupInterval <= 0 || c.ReconcileInterval <= 0 {
		errs = append(errs, ErrInvalidInterval)
	}
	if c.TracingExporter != "otlp-http" && c.TracingExporter != "otlp-grpc" {
		errs = append(errs, ErrInvalidTracingExporter)
	}
	if c.TracingSampleRate < 0 || c.TracingSampleRate > 1 {
		errs = append(errs, ErrInvalidSampleRate)
	}
	if c.RateLimitGlobal <= 0 || c.RateLimitTracking <= 0 || c.RateLimitTip <= 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}

	return errs
}

// UploadsEnabled reports whether R2 signing is configured.
func (c *Config) UploadsEnabled() bool {
	return c.R2BucketName != ""
}

// LogSummary returns a summary of the configuration suitable for logging.
// All secrets are masked to prevent accidental exposure.
func (c *Config) LogSummary() map[string]string {
	return map[string]string{
		"port":                  strconv.Itoa(c.Port),
		"env":                   c.Env,
		"database_url":          maskDatabaseURL(c.DatabaseURL),
		"redis_url":             maskDatabaseURL(c.RedisURL),
		"jwt_secret":            maskSecret(c.JWTSecret),
		"jwt_previous_secret":   maskSecret(c.JWTPreviousSecret),
		"internal_token":        maskSecret(c.InternalToken),
		"stripe_api_key":        maskStripeKey(c.StripeAPIKey),
		"stripe_webhook_secret": maskSecret(c.StripeWebhookSecret),
		"r2_bucket_name":        c.R2BucketName,
		"r2_access_key_id":      maskSecret(c.R2AccessKeyID),
		"r2_secret_access_key":  maskSecret(c.R2SecretAccessKey),
		"r2_endpoint":           c.R2Endpoint,
		"r2_max_video_size_mb":  strconv.Itoa(c.R2MaxVideoSizeMB),
		"r2_max_image_size_mb":  strconv.Itoa(c.R2MaxImageSizeMB),
		"analytics_timezone":    c.AnalyticsTimezone,
		"guidelines_version":    c.GuidelinesVersion,
		"publish_interval":      c.PublishInterval.String(),
		"rollup_interval":       c.RollupInterval.String(),
		"reconcile_interval":    c.ReconcileInterval.String(),
		"tracing_enabled":       strconv.FormatBool(c.TracingEnabled),
		"tracing_exporter":      c.TracingExporter,
		"tracing_sample_rate":   strconv.FormatFloat(c.TracingSampleRate, 'f', -1, 64),
		"rate_limit_global":     strconv.Itoa(c.RateLimitGlobal),
		"rate_limit_tracking":   strconv.Itoa(c.RateLimitTracking),
		"rate_limit_tip":        strconv.Itoa(c.RateLimitTip),
		"cors_allowed_origins":  strings.Join(c.CORSAllowedOrigins, ","),
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

// maskStripeKey masks a Stripe API key, preserving the prefix (sk_live_, sk_test_, etc.)
func maskStripeKey(s string) string {
	if s == "" {
		return "<not set>"
	}
	parts := strings.SplitN(s, "_", 3)
	if len(parts) == 3 {
		return parts[0] + "_" + parts[1] + "_****"
	}
	return maskSecret(s)
}

// maskDatabaseURL masks the password in a connection URL (postgres://, redis://).
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
		return s
	}
	colonIndex := strings.Index(rest[:atIndex], ":")
	if colonIndex == -1 {
		return s
	}
	return s[:schemeEnd+3] + rest[:colonIndex] + ":****" + rest[atIndex:]
}
