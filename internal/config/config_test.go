package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var configEnvKeys = []string{
	"REELCAST_PORT", "PORT", "REELCAST_ENV", "ENV", "GO_ENV",
	"DATABASE_URL", "REDIS_URL", "JWT_SECRET", "JWT_PREVIOUS_SECRET", "INTERNAL_TOKEN",
	"STRIPE_API_KEY", "STRIPE_WEBHOOK_SECRET",
	"R2_BUCKET_NAME", "R2_ACCESS_KEY_ID", "R2_SECRET_ACCESS_KEY", "R2_ENDPOINT", "R2_PUBLIC_BASE_URL",
	"R2_MAX_VIDEO_SIZE_MB", "R2_MAX_IMAGE_SIZE_MB",
	"ANALYTICS_TIMEZONE", "GUIDELINES_VERSION",
	"PUBLISH_INTERVAL", "ROLLUP_INTERVAL", "RECONCILE_INTERVAL",
	"TRACING_ENABLED", "TRACING_EXPORTER", "TRACING_ENDPOINT", "TRACING_SAMPLE_RATE",
	"RATE_LIMIT_GLOBAL", "RATE_LIMIT_TRACKING", "RATE_LIMIT_TIP",
	"CORS_ALLOWED_ORIGINS",
}

// clearConfigEnv blanks every key Load reads. t.Setenv restores them afterwards.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, k := range configEnvKeys {
		t.Setenv(k, "")
	}
}

func containsErr(errs []error, target error) bool {
	for _, err := range errs {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func TestLoad_Defaults(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "supersecret32characterlongvalue!")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors: %v", errs)
	}

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Env != DefaultEnv {
		t.Errorf("Env = %q, want %q", cfg.Env, DefaultEnv)
	}
	if cfg.AnalyticsTimezone != "UTC" {
		t.Errorf("AnalyticsTimezone = %q, want UTC", cfg.AnalyticsTimezone)
	}
	if cfg.GuidelinesVersion != DefaultGuidelinesVersion {
		t.Errorf("GuidelinesVersion = %q", cfg.GuidelinesVersion)
	}
	if cfg.PublishInterval != time.Minute {
		t.Errorf("PublishInterval = %v, want 1m", cfg.PublishInterval)
	}
	if cfg.RollupInterval != 24*time.Hour {
		t.Errorf("RollupInterval = %v, want 24h", cfg.RollupInterval)
	}
	if cfg.TracingEnabled {
		t.Error("tracing should be disabled by default")
	}
	if cfg.RateLimitTip != DefaultRateLimitTip {
		t.Errorf("RateLimitTip = %d, want %d", cfg.RateLimitTip, DefaultRateLimitTip)
	}
	if cfg.UploadsEnabled() {
		t.Error("uploads should be disabled without R2 settings")
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr error
	}{
		{
			name:    "missing jwt secret",
			envVars: map[string]string{},
			wantErr: ErrMissingJWTSecret,
		},
		{
			name:    "production without database",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "ENV": "production", "INTERNAL_TOKEN": "tok"},
			wantErr: ErrMissingDatabaseURL,
		},
		{
			name:    "production without internal token",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "ENV": "production", "DATABASE_URL": "postgres://localhost/db"},
			wantErr: ErrMissingInternalToken,
		},
		{
			name:    "stripe key without webhook secret",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "STRIPE_API_KEY": "sk_test_123"},
			wantErr: ErrMissingStripeWebhookSecret,
		},
		{
			name:    "partial r2 settings",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "R2_BUCKET_NAME": "videos"},
			wantErr: ErrMissingR2Endpoint,
		},
		{
			name:    "unknown timezone",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "ANALYTICS_TIMEZONE": "Mars/Olympus"},
			wantErr: ErrInvalidTimezone,
		},
		{
			name:    "negative interval",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "PUBLISH_INTERVAL": "-1m"},
			wantErr: ErrInvalidInterval,
		},
		{
			name:    "bad exporter",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "TRACING_EXPORTER": "zipkin"},
			wantErr: ErrInvalidTracingExporter,
		},
		{
			name:    "sample rate out of range",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "TRACING_SAMPLE_RATE": "1.5"},
			wantErr: ErrInvalidSampleRate,
		},
		{
			name:    "zero tip rate limit",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "RATE_LIMIT_TIP": "-3"},
			wantErr: ErrInvalidRateLimit,
		},
		{
			name:    "non-numeric port",
			envVars: map[string]string{"JWT_SECRET": "s3cret-value", "PORT": "http"},
			wantErr: ErrInvalidPort,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearConfigEnv(t)
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			_, errs := Load("")
			if !containsErr(errs, tt.wantErr) {
				t.Errorf("Load() errors = %v, want %v", errs, tt.wantErr)
			}
		})
	}
}

func TestLoad_MalformedValuesReported(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "s3cret-value")
	t.Setenv("ROLLUP_INTERVAL", "daily")
	t.Setenv("RATE_LIMIT_GLOBAL", "lots")

	_, errs := Load("")
	var joined []string
	for _, err := range errs {
		joined = append(joined, err.Error())
	}
	all := strings.Join(joined, "; ")
	for _, key := range []string{"ROLLUP_INTERVAL", "RATE_LIMIT_GLOBAL"} {
		if !strings.Contains(all, key) {
			t.Errorf("expected an error naming %s, got %q", key, all)
		}
	}
}

func TestLoad_ConfigFileWithEnvPrecedence(t *testing.T) {
	clearConfigEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `port: 9000
env: staging
jwt_secret: from-file-secret
analytics_timezone: America/New_York
publish_interval: 30s
tracing_enabled: true
tracing_exporter: otlp-grpc
tracing_sample_rate: 0.5
cors_allowed_origins:
  - https://app.example.com
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PORT", "7000")
	t.Setenv("GUIDELINES_VERSION", "2.1")

	cfg, errs := Load(path)
	if len(errs) != 0 {
		t.Fatalf("Load() errors: %v", errs)
	}

	if cfg.Port != 7000 {
		t.Errorf("Port = %d, want env override 7000", cfg.Port)
	}
	if cfg.Env != "staging" {
		t.Errorf("Env = %q, want staging", cfg.Env)
	}
	if cfg.JWTSecret != "from-file-secret" {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.GuidelinesVersion != "2.1" {
		t.Errorf("GuidelinesVersion = %q, want 2.1", cfg.GuidelinesVersion)
	}
	if cfg.PublishInterval != 30*time.Second {
		t.Errorf("PublishInterval = %v, want 30s", cfg.PublishInterval)
	}
	if !cfg.TracingEnabled || cfg.TracingExporter != "otlp-grpc" || cfg.TracingSampleRate != 0.5 {
		t.Errorf("tracing = %v %q %v", cfg.TracingEnabled, cfg.TracingExporter, cfg.TracingSampleRate)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "https://app.example.com" {
		t.Errorf("CORSAllowedOrigins = %v", cfg.CORSAllowedOrigins)
	}
	loc, err := cfg.Location()
	if err != nil || loc.String() != "America/New_York" {
		t.Errorf("Location() = %v, %v", loc, err)
	}
}

func TestLoad_MissingConfigFile(t *testing.T) {
	clearConfigEnv(t)
	cfg, errs := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if cfg != nil {
		t.Error("expected nil config for unreadable file")
	}
	if len(errs) != 1 {
		t.Fatalf("expected exactly one error, got %v", errs)
	}
}

func TestLoad_CORSFromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("JWT_SECRET", "s3cret-value")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors: %v", errs)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if strings.Join(cfg.CORSAllowedOrigins, "|") != strings.Join(want, "|") {
		t.Errorf("CORSAllowedOrigins = %v, want %v", cfg.CORSAllowedOrigins, want)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearConfigEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("JWT_SECRET=dotenv-secret\nRATE_LIMIT_TIP=4\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	// godotenv does not override variables that are already set.
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("RATE_LIMIT_TIP")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("RATE_LIMIT_TIP")
	})

	if err := LoadDotEnv(filepath.Join(dir, "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error: %v", err)
	}

	cfg, errs := Load("")
	if len(errs) != 0 {
		t.Fatalf("Load() errors: %v", errs)
	}
	if cfg.JWTSecret != "dotenv-secret" || cfg.RateLimitTip != 4 {
		t.Errorf("dotenv values not applied: secret=%q tip=%d", cfg.JWTSecret, cfg.RateLimitTip)
	}
}

func TestLogSummary_MasksSecrets(t *testing.T) {
	cfg := &Config{
		Port:                8080,
		Env:                 "production",
		DatabaseURL:         "postgres://reel:hunter2@db:5432/reelcast",
		RedisURL:            "redis://:redispass@cache:6379/0",
		JWTSecret:           "supersecret32characterlongvalue!",
		InternalToken:       "internal-token-value",
		StripeAPIKey:        "sk_live_abcdef123456",
		StripeWebhookSecret: "whsec_abcdef123456",
		R2SecretAccessKey:   "r2secretvalue",
	}

	summary := cfg.LogSummary()
	for key, val := range summary {
		for _, secret := range []string{"hunter2", "redispass", "supersecret32", "internal-token-value", "abcdef123456", "r2secretvalue"} {
			if strings.Contains(val, secret) {
				t.Errorf("%s leaks secret: %q", key, val)
			}
		}
	}
	if got := summary["database_url"]; got != "postgres://reel:****@db:5432/reelcast" {
		t.Errorf("database_url = %q", got)
	}
	if got := summary["stripe_api_key"]; got != "sk_live_****" {
		t.Errorf("stripe_api_key = %q", got)
	}
	if got := summary["jwt_previous_secret"]; got != "<not set>" {
		t.Errorf("jwt_previous_secret = %q", got)
	}
}

func TestMaskSecret(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", "<not set>"},
		{"short", "****"},
		{"longenoughsecret", "long****"},
	}
	for _, tt := range tests {
		if got := maskSecret(tt.in); got != tt.want {
			t.Errorf("maskSecret(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
