package config

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseDriver string `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL    string `env:"DATABASE_URL" envDefault:"file:authcore.db?_foreign_keys=on"`

	// Empty RedisAddr keeps login throttling in process memory.
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`
	RedisPrefix   string `env:"REDIS_PREFIX" envDefault:"authcore"`

	SessionDefaultTTL    time.Duration `env:"SESSION_DEFAULT_TTL" envDefault:"24h"`
	SessionMaxTTL        time.Duration `env:"SESSION_MAX_TTL" envDefault:"720h"`
	SessionSweepInterval time.Duration `env:"SESSION_SWEEP_INTERVAL" envDefault:"10m"`
	SessionSweepGrace    time.Duration `env:"SESSION_SWEEP_GRACE" envDefault:"24h"`
	SessionTokenPepper   string        `env:"SESSION_TOKEN_PEPPER"`
	SessionCookieName    string        `env:"SESSION_COOKIE_NAME" envDefault:"ssid"`
	SessionCookieSecure  bool          `env:"SESSION_COOKIE_SECURE" envDefault:"true"`

	PasswordMinLength int    `env:"PASSWORD_MIN_LENGTH" envDefault:"8"`
	PasswordMaxLength int    `env:"PASSWORD_MAX_LENGTH" envDefault:"128"`
	Argon2MemoryKiB   uint32 `env:"ARGON2_MEMORY_KIB" envDefault:"65536"`
	Argon2Iterations  uint32 `env:"ARGON2_ITERATIONS" envDefault:"1"`
	Argon2Parallelism uint8  `env:"ARGON2_PARALLELISM" envDefault:"4"`
	// Zero sizes the hashing pool to the number of CPUs.
	HashConcurrency int `env:"HASH_CONCURRENCY" envDefault:"0"`

	StorageRetryMaxAttempts    uint          `env:"STORAGE_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	StorageRetryInitialBackoff time.Duration `env:"STORAGE_RETRY_INITIAL_BACKOFF" envDefault:"50ms"`

	LoginMaxFailures   int           `env:"LOGIN_MAX_FAILURES" envDefault:"5"`
	LoginFailureWindow time.Duration `env:"LOGIN_FAILURE_WINDOW" envDefault:"15m"`

	AuthRateLimitRPM int `env:"AUTH_RATE_LIMIT_RPM" envDefault:"60"`
	APIRateLimitRPM  int `env:"API_RATE_LIMIT_RPM" envDefault:"600"`

	OTELServiceName           string        `env:"OTEL_SERVICE_NAME" envDefault:"credential-session-core"`
	OTELEnvironment           string        `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OTELExporterOTLPEndpoint  string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4317"`
	OTELExporterOTLPInsecure  bool          `env:"OTEL_EXPORTER_OTLP_INSECURE" envDefault:"true"`
	OTELMetricsEnabled        bool          `env:"OTEL_METRICS_ENABLED" envDefault:"false"`
	OTELTracingEnabled        bool          `env:"OTEL_TRACING_ENABLED" envDefault:"false"`
	OTELLogsEnabled           bool          `env:"OTEL_LOGS_ENABLED" envDefault:"false"`
	OTELHTTPEnabled           bool          `env:"OTEL_HTTP_ENABLED" envDefault:"true"`
	OTELMetricsExportInterval time.Duration `env:"OTEL_METRICS_EXPORT_INTERVAL" envDefault:"15s"`
	OTELTraceSampleRatio      float64       `env:"OTEL_TRACE_SAMPLE_RATIO" envDefault:"1"`

	ShutdownTimeout              time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"20s"`
	ShutdownHTTPDrainTimeout     time.Duration `env:"SHUTDOWN_HTTP_DRAIN_TIMEOUT" envDefault:"10s"`
	ShutdownObservabilityTimeout time.Duration `env:"SHUTDOWN_OBSERVABILITY_TIMEOUT" envDefault:"5s"`
}

// Load reads the configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	err := env.Parse(cfg)
	if err != nil {
		err = fmt.Errorf("parse env: %w", err)
	} else if verr := cfg.Validate(); verr != nil {
		err = fmt.Errorf("validate config: %w", verr)
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	recordConfigLoad(context.Background(), cfg.AppEnv, cfg.DatabaseDriver, outcome, err)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DatabaseDriver {
	case DriverPostgres, DriverSQLite:
	default:
		errs = append(errs, fmt.Errorf("DATABASE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverSQLite, c.DatabaseDriver))
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		errs = append(errs, errors.New("DATABASE_URL is required"))
	}
	if c.SessionDefaultTTL <= 0 {
		errs = append(errs, errors.New("SESSION_DEFAULT_TTL must be positive"))
	}
	if c.SessionMaxTTL < c.SessionDefaultTTL {
		errs = append(errs, errors.New("SESSION_MAX_TTL must be >= SESSION_DEFAULT_TTL"))
	}
	if c.SessionSweepInterval <= 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_INTERVAL must be positive"))
	}
	if c.SessionSweepGrace < 0 {
		errs = append(errs, errors.New("SESSION_SWEEP_GRACE must not be negative"))
	}
	if strings.TrimSpace(c.SessionCookieName) == "" {
		errs = append(errs, errors.New("SESSION_COOKIE_NAME is required"))
	}
	if c.PasswordMinLength < 1 || c.PasswordMaxLength < c.PasswordMinLength {
		errs = append(errs, errors.New("PASSWORD_MIN_LENGTH must be >= 1 and <= PASSWORD_MAX_LENGTH"))
	}
	if c.Argon2Parallelism == 0 || c.Argon2Iterations == 0 {
		errs = append(errs, errors.New("ARGON2_ITERATIONS and ARGON2_PARALLELISM must be positive"))
	}
	if c.Argon2MemoryKiB < 8*uint32(c.Argon2Parallelism) {
		errs = append(errs, errors.New("ARGON2_MEMORY_KIB must be at least 8*ARGON2_PARALLELISM"))
	}
	if c.StorageRetryMaxAttempts == 0 {
		errs = append(errs, errors.New("STORAGE_RETRY_MAX_ATTEMPTS must be at least 1"))
	}
	if c.OTELTraceSampleRatio < 0 || c.OTELTraceSampleRatio > 1 {
		errs = append(errs, errors.New("OTEL_TRACE_SAMPLE_RATIO must be within [0,1]"))
	}
	if c.IsProduction() && c.SessionTokenPepper == "" {
		errs = append(errs, errors.New("SESSION_TOKEN_PEPPER is required in production"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return normalizeConfigProfile(c.AppEnv) == "production"
}
