package config

import (
	"fmt"
	"net"
	"net/url"
	"strings"

	"pfw-hq/relay/pkg/docstore"

	"github.com/robfig/cron/v3"
)

// FieldError is a validation error for one configuration field.
type FieldError struct {
	// Field is the dotted path, e.g. "proxy.listen_address".
	Field string

	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError collects every FieldError found.
type ValidationError struct {
	Errors []FieldError
}

func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:\n", len(e.Errors))
	for _, err := range e.Errors {
		fmt.Fprintf(&sb, "  - %s\n", err.Error())
	}
	return sb.String()
}

// Has reports whether field failed validation.
func (e ValidationError) Has(field string) bool {
	for _, fe := range e.Errors {
		if fe.Field == field {
			return true
		}
	}
	return false
}

// knownSiblingSources have registered adapters.
var knownSiblingSources = map[string]bool{"fpd": true, "ptab": true}

// Validate checks cfg and returns a ValidationError listing every problem.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateProxy(&cfg.Proxy)...)
	errs = append(errs, validateRateLimit(&cfg.RateLimit)...)
	errs = append(errs, validateLinkCache(&cfg.LinkCache)...)
	errs = append(errs, validateUpstream(&cfg.Upstream)...)
	errs = append(errs, validateSiblings(&cfg.Siblings)...)
	errs = append(errs, validateSecrets(&cfg.Secrets)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateProxy(cfg *ProxyConfig) []FieldError {
	var errs []FieldError

	if cfg.ListenAddress == "" {
		errs = append(errs, FieldError{"proxy.listen_address", "listen address is required"})
	} else if _, _, err := net.SplitHostPort(cfg.ListenAddress); err != nil {
		errs = append(errs, FieldError{"proxy.listen_address", fmt.Sprintf("invalid host:port %q", cfg.ListenAddress)})
	}

	if cfg.PublicBaseURL != "" {
		u, err := url.Parse(cfg.PublicBaseURL)
		switch {
		case err != nil || u.Host == "":
			errs = append(errs, FieldError{"proxy.public_base_url", "must be an absolute URL"})
		case u.Scheme != "http" && u.Scheme != "https":
			errs = append(errs, FieldError{"proxy.public_base_url", "scheme must be http or https"})
		case u.RawQuery != "" || u.Fragment != "":
			errs = append(errs, FieldError{"proxy.public_base_url", "must not contain a query or fragment"})
		}
	}

	if cfg.Startup != StartupEager && cfg.Startup != StartupOnDemand {
		errs = append(errs, FieldError{"proxy.startup", fmt.Sprintf("must be %q or %q", StartupEager, StartupOnDemand)})
	}

	if cfg.ReadTimeout < 0 {
		errs = append(errs, FieldError{"proxy.read_timeout", "must be non-negative"})
	}
	if cfg.WriteTimeout < 0 {
		errs = append(errs, FieldError{"proxy.write_timeout", "must be non-negative"})
	}
	if cfg.IdleTimeout < 0 {
		errs = append(errs, FieldError{"proxy.idle_timeout", "must be non-negative"})
	}
	if cfg.ShutdownTimeout < 0 {
		errs = append(errs, FieldError{"proxy.shutdown_timeout", "must be non-negative"})
	}
	if cfg.MaxHeaderBytes < 0 {
		errs = append(errs, FieldError{"proxy.max_header_bytes", "must be non-negative"})
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, FieldError{"proxy.max_body_bytes", "must be positive"})
	}

	return errs
}

func validateRateLimit(cfg *RateLimitConfig) []FieldError {
	var errs []FieldError

	if cfg.Requests <= 0 {
		errs = append(errs, FieldError{"rate_limit.requests", "must be positive"})
	}
	if cfg.Window <= 0 {
		errs = append(errs, FieldError{"rate_limit.window", "must be positive"})
	}
	if cfg.MaxHold < 0 {
		errs = append(errs, FieldError{"rate_limit.max_hold", "must be non-negative"})
	}

	return errs
}

func validateLinkCache(cfg *LinkCacheConfig) []FieldError {
	var errs []FieldError

	switch cfg.Backend {
	case BackendMemory:
	case BackendSQLite:
		if cfg.SQLite.Path == "" {
			errs = append(errs, FieldError{"link_cache.sqlite.path", "path is required for the sqlite backend"})
		}
		if cfg.SQLite.Driver != "sqlite" && cfg.SQLite.Driver != "sqlite3" {
			errs = append(errs, FieldError{"link_cache.sqlite.driver", `must be "sqlite" or "sqlite3"`})
		}
		if cfg.SQLite.BusyTimeout < 0 {
			errs = append(errs, FieldError{"link_cache.sqlite.busy_timeout", "must be non-negative"})
		}
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			errs = append(errs, FieldError{"link_cache.redis.addr", "address is required for the redis backend"})
		}
		if cfg.Redis.DB < 0 {
			errs = append(errs, FieldError{"link_cache.redis.db", "must be non-negative"})
		}
	default:
		errs = append(errs, FieldError{"link_cache.backend", fmt.Sprintf("unknown backend %q (sqlite, memory, redis)", cfg.Backend)})
	}

	if cfg.TTL <= 0 {
		errs = append(errs, FieldError{"link_cache.ttl", "must be positive"})
	}

	if cfg.SweepSchedule != "" {
		if _, err := cron.ParseStandard(cfg.SweepSchedule); err != nil {
			errs = append(errs, FieldError{"link_cache.sweep_schedule", fmt.Sprintf("invalid cron expression: %v", err)})
		}
	}

	return errs
}

func validateUpstream(cfg *UpstreamConfig) []FieldError {
	var errs []FieldError

	if len(cfg.AllowedHosts) == 0 {
		errs = append(errs, FieldError{"upstream.allowed_hosts", "at least one host is required"})
	}
	if _, err := (docstore.HostPolicy{Hosts: cfg.AllowedHosts}).Check(cfg.BaseURL); err != nil {
		errs = append(errs, FieldError{"upstream.base_url", "must be an https URL on an allowed host"})
	}

	if cfg.CredentialSecret == "" {
		errs = append(errs, FieldError{"upstream.credential_secret", "secret name is required"})
	}
	if cfg.AuthHeader == "" {
		errs = append(errs, FieldError{"upstream.auth_header", "header name is required"})
	}
	if cfg.Timeout <= 0 {
		errs = append(errs, FieldError{"upstream.timeout", "must be positive"})
	}
	if cfg.StreamTimeout < 0 {
		errs = append(errs, FieldError{"upstream.stream_timeout", "must be non-negative"})
	}
	if cfg.RetryBackoff < 0 {
		errs = append(errs, FieldError{"upstream.retry_backoff", "must be non-negative"})
	}
	if err := cfg.TLS.Validate(); err != nil {
		errs = append(errs, FieldError{"upstream.tls", err.Error()})
	}

	return errs
}

func validateSiblings(cfg *SiblingsConfig) []FieldError {
	var errs []FieldError

	anyEnabled := false
	for name, sc := range cfg.Sources {
		if !knownSiblingSources[name] {
			errs = append(errs, FieldError{"siblings.sources." + name, "no adapter for this source (fpd, ptab)"})
			continue
		}
		anyEnabled = anyEnabled || sc.Enabled
	}

	if anyEnabled && cfg.AuthSecret == "" {
		errs = append(errs, FieldError{"siblings.auth_secret", "secret name is required when a sibling source is enabled"})
	}
	if cfg.TokenTTL <= 0 {
		errs = append(errs, FieldError{"siblings.token_ttl", "must be positive"})
	}
	if cfg.Audience == "" {
		errs = append(errs, FieldError{"siblings.audience", "audience is required"})
	}

	return errs
}

func validateSecrets(cfg *SecretsConfig) []FieldError {
	var errs []FieldError

	if cfg.CacheTTL < 0 {
		errs = append(errs, FieldError{"secrets.cache_ttl", "must be non-negative"})
	}
	if cfg.Watch && cfg.FileDir == "" {
		errs = append(errs, FieldError{"secrets.watch", "requires secrets.file_dir"})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch strings.ToLower(cfg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{"telemetry.logging.level", fmt.Sprintf("invalid level %q", cfg.Logging.Level)})
	}
	switch strings.ToLower(cfg.Logging.Format) {
	case "json", "text", "console":
	default:
		errs = append(errs, FieldError{"telemetry.logging.format", fmt.Sprintf("invalid format %q", cfg.Logging.Format)})
	}

	if cfg.Metrics.Enabled && !strings.HasPrefix(cfg.Metrics.Path, "/") {
		errs = append(errs, FieldError{"telemetry.metrics.path", `must start with "/"`})
	}

	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		errs = append(errs, FieldError{"telemetry.tracing.endpoint", "endpoint is required when tracing is enabled"})
	}
	if cfg.Tracing.SampleRatio < 0 || cfg.Tracing.SampleRatio > 1 {
		errs = append(errs, FieldError{"telemetry.tracing.sample_ratio", "must be between 0 and 1"})
	}

	return errs
}
