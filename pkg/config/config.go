package config

import (
	"net"
	"time"

	"pfw-hq/relay/pkg/security/tls"
)

// Config is the root configuration.
type Config struct {
	Proxy     ProxyConfig     `yaml:"proxy"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	LinkCache LinkCacheConfig `yaml:"link_cache"`
	Upstream  UpstreamConfig  `yaml:"upstream"`
	Siblings  SiblingsConfig  `yaml:"siblings"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ProxyConfig configures the local HTTP proxy.
type ProxyConfig struct {
	// ListenAddress is "host:port". Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// PublicBaseURL prefixes issued links. Empty derives
	// "http://localhost:<port>" from ListenAddress.
	PublicBaseURL string `yaml:"public_base_url"`

	// Startup is "eager" (listen at boot) or "on_demand" (listen when the
	// first link is issued). Default: "eager"
	Startup string `yaml:"startup"`

	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout bounds the whole response. Zero disables it so large
	// documents can stream. Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`

	// MaxBodyBytes caps registration request bodies. Default: 1 MiB
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// LoopbackOnly rejects non-loopback peers on every route. Default: true
	LoopbackOnly bool `yaml:"loopback_only"`

	// AdminSecret names the secret holding the key required on /admin
	// routes. Empty leaves them guarded by LoopbackOnly alone.
	AdminSecret string `yaml:"admin_secret"`
}

// BaseURL returns PublicBaseURL or the address derived from ListenAddress.
func (p ProxyConfig) BaseURL() string {
	if p.PublicBaseURL != "" {
		return p.PublicBaseURL
	}
	_, port, err := net.SplitHostPort(p.ListenAddress)
	if err != nil || port == "" {
		port = "8080"
	}
	return "http://localhost:" + port
}

// RateLimitConfig configures the upstream pacing window.
type RateLimitConfig struct {
	// Requests admitted per Window. Default: 5
	Requests int `yaml:"requests"`

	// Window length. Default: 10s
	Window time.Duration `yaml:"window"`

	// MaxHold is the longest a request is held before 429. Default: 15s
	MaxHold time.Duration `yaml:"max_hold"`
}

// LinkCacheConfig configures token storage.
type LinkCacheConfig struct {
	// Backend is "sqlite", "memory" or "redis". Default: "sqlite"
	Backend string `yaml:"backend"`

	// TTL is the default link lifetime. Default: 168h
	TTL time.Duration `yaml:"ttl"`

	// SweepSchedule is a cron expression. Empty disables sweeping.
	// Default: "@every 15m"
	SweepSchedule string `yaml:"sweep_schedule"`

	SQLite SQLiteConfig `yaml:"sqlite"`
	Redis  RedisConfig  `yaml:"redis"`

	// SealSecret names the secret holding the base64 32-byte sealing key.
	// Empty stores descriptors unsealed. Default: "link-cache-key"
	SealSecret string `yaml:"seal_secret"`

	// KeyFile is where a sealing key is generated when SealSecret is not
	// found. Empty disables generation.
	KeyFile string `yaml:"key_file"`
}

// SQLiteConfig configures the SQLite backend.
type SQLiteConfig struct {
	// Path to the database file. Default: "data/proxy_link_cache.db"
	Path string `yaml:"path"`

	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo). Default: "sqlite"
	Driver string `yaml:"driver"`

	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// UpstreamConfig configures the USPTO API client.
type UpstreamConfig struct {
	// BaseURL of the API. Default: "https://api.uspto.gov"
	BaseURL string `yaml:"base_url"`

	// AllowedHosts receive the credential. A leading dot matches any
	// subdomain. Default: ["api.uspto.gov", ".uspto.gov"]
	AllowedHosts []string `yaml:"allowed_hosts"`

	// CredentialSecret names the API key secret. Default: "uspto-api-key"
	CredentialSecret string `yaml:"credential_secret"`

	// AuthHeader carries the API key. Default: "X-API-KEY"
	AuthHeader string `yaml:"auth_header"`

	// Timeout waits for response headers. Default: 30s
	Timeout time.Duration `yaml:"timeout"`

	// StreamTimeout bounds one whole transfer. Default: 5m
	StreamTimeout time.Duration `yaml:"stream_timeout"`

	// RetryBackoff precedes the single retry of a transient failure.
	// Default: 500ms
	RetryBackoff time.Duration `yaml:"retry_backoff"`

	UserAgent string `yaml:"user_agent"`

	// TLS adds trusted CAs and protocol limits for upstream connections.
	TLS tls.ClientConfig `yaml:"tls"`
}

// SiblingsConfig configures sibling registrations.
type SiblingsConfig struct {
	// Sources keyed by source system ("fpd", "ptab").
	Sources map[string]SiblingSourceConfig `yaml:"sources"`

	// AuthSecret names the shared HS256 secret. Default: "internal-auth-secret"
	AuthSecret string `yaml:"auth_secret"`

	// TokenTTL is the lifetime of minted service tokens. Default: 5m
	TokenTTL time.Duration `yaml:"token_ttl"`

	// Audience of service tokens. Default: "pfw-relay"
	Audience string `yaml:"audience"`
}

// SiblingSourceConfig toggles one sibling source.
type SiblingSourceConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Enabled reports whether source accepts registrations.
func (s SiblingsConfig) Enabled(source string) bool {
	sc, ok := s.Sources[source]
	return ok && sc.Enabled
}

// SecretsConfig configures secret providers, consulted in order:
// environment, secret files, .env file.
type SecretsConfig struct {
	// EnvPrefix is prepended to environment variable names.
	EnvPrefix string `yaml:"env_prefix"`

	// FileDir holds one file per secret. Empty disables the provider.
	FileDir string `yaml:"file_dir"`

	// Watch reloads FileDir on change.
	Watch bool `yaml:"watch"`

	// DotenvFile is read as a last-resort provider. Default: ".env"
	DotenvFile string `yaml:"dotenv_file"`

	// CacheTTL for resolved secrets. Default: 5m
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// TelemetryConfig configures observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig configures slog.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	Format    string `yaml:"format"`
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig configures Prometheus.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// TracingConfig configures OpenTelemetry.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`
	Insecure    bool    `yaml:"insecure"`
	SampleRatio float64 `yaml:"sample_ratio"`
	ServiceName string  `yaml:"service_name"`
}
