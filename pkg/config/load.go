package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every override variable.
const EnvPrefix = "PFW_"

// LoadConfig loads configuration from a YAML file over Defaults and
// validates it. An empty path loads defaults only.
func LoadConfig(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigWithEnvOverrides loads the YAML file, then the configured .env
// file, then PFW_* overrides, and validates the result.
//
// The loading sequence is:
// 1. Start from Defaults
// 2. Decode the YAML file over them
// 3. Load the .env file without overriding variables already set
// 4. Apply PFW_* environment overrides
// 5. Validate
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	if err := loadDotenv(envOr(EnvPrefix+"SECRETS_DOTENV_FILE", cfg.Secrets.DotenvFile)); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// loadDotenv loads path into the process environment. Variables already
// set win; a missing file is not an error.
func loadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load env file %q: %w", path, err)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

// envOverrides collects malformed values so a typo in one variable is
// reported rather than silently ignored.
type envOverrides struct {
	errs []FieldError
}

func (e *envOverrides) str(name string, dst *string) {
	if v := os.Getenv(EnvPrefix + name); v != "" {
		*dst = v
	}
}

func (e *envOverrides) duration(name string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail(name, "invalid duration %q", v)
		return
	}
	*dst = d
}

func (e *envOverrides) integer(name string, dst *int) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.fail(name, "invalid integer %q", v)
		return
	}
	*dst = i
}

func (e *envOverrides) boolean(name string, dst *bool) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.fail(name, "invalid boolean %q", v)
		return
	}
	*dst = b
}

func (e *envOverrides) float(name string, dst *float64) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(name, "invalid number %q", v)
		return
	}
	*dst = f
}

func (e *envOverrides) fail(name, format string, args ...any) {
	e.errs = append(e.errs, FieldError{
		Field:   EnvPrefix + name,
		Message: fmt.Sprintf(format, args...),
	})
}

// applyEnvOverrides applies PFW_* variables to cfg.
func applyEnvOverrides(cfg *Config) error {
	e := &envOverrides{}

	// Proxy overrides
	e.str("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	if port := os.Getenv(EnvPrefix + "PROXY_PORT"); port != "" {
		if _, err := strconv.ParseUint(port, 10, 16); err != nil {
			e.fail("PROXY_PORT", "invalid port %q", port)
		} else {
			host, _, err := net.SplitHostPort(cfg.Proxy.ListenAddress)
			if err != nil {
				host = "127.0.0.1"
			}
			cfg.Proxy.ListenAddress = net.JoinHostPort(host, port)
		}
	}
	e.str("PROXY_PUBLIC_BASE_URL", &cfg.Proxy.PublicBaseURL)
	e.str("PROXY_STARTUP", &cfg.Proxy.Startup)
	e.boolean("PROXY_LOOPBACK_ONLY", &cfg.Proxy.LoopbackOnly)
	e.str("PROXY_ADMIN_SECRET", &cfg.Proxy.AdminSecret)
	e.duration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)

	// Rate limit overrides
	e.integer("RATE_LIMIT_REQUESTS", &cfg.RateLimit.Requests)
	e.duration("RATE_LIMIT_WINDOW", &cfg.RateLimit.Window)
	e.duration("RATE_LIMIT_MAX_HOLD", &cfg.RateLimit.MaxHold)

	// Link cache overrides
	e.str("LINK_CACHE_BACKEND", &cfg.LinkCache.Backend)
	e.duration("LINK_CACHE_TTL", &cfg.LinkCache.TTL)
	e.str("LINK_CACHE_SWEEP_SCHEDULE", &cfg.LinkCache.SweepSchedule)
	e.str("LINK_CACHE_SQLITE_PATH", &cfg.LinkCache.SQLite.Path)
	e.str("LINK_CACHE_SQLITE_DRIVER", &cfg.LinkCache.SQLite.Driver)
	e.str("LINK_CACHE_REDIS_ADDR", &cfg.LinkCache.Redis.Addr)
	e.str("LINK_CACHE_REDIS_PASSWORD", &cfg.LinkCache.Redis.Password)
	e.integer("LINK_CACHE_REDIS_DB", &cfg.LinkCache.Redis.DB)
	e.str("LINK_CACHE_KEY_FILE", &cfg.LinkCache.KeyFile)

	// Upstream overrides
	e.str("UPSTREAM_BASE_URL", &cfg.Upstream.BaseURL)
	e.duration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	e.duration("UPSTREAM_STREAM_TIMEOUT", &cfg.Upstream.StreamTimeout)
	e.duration("UPSTREAM_RETRY_BACKOFF", &cfg.Upstream.RetryBackoff)
	e.str("UPSTREAM_TLS_CA_FILE", &cfg.Upstream.TLS.CAFile)
	e.str("UPSTREAM_TLS_MIN_VERSION", &cfg.Upstream.TLS.MinVersion)

	// Secrets overrides
	e.str("SECRETS_ENV_PREFIX", &cfg.Secrets.EnvPrefix)
	e.str("SECRETS_FILE_DIR", &cfg.Secrets.FileDir)
	e.str("SECRETS_DOTENV_FILE", &cfg.Secrets.DotenvFile)
	e.boolean("SECRETS_WATCH", &cfg.Secrets.Watch)

	// Telemetry overrides
	e.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	e.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	e.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	e.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	e.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	e.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)

	if len(e.errs) > 0 {
		return ValidationError{Errors: e.errs}
	}
	return nil
}
