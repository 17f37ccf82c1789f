package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultStartup         = StartupEager
	DefaultReadTimeout     = 30 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1 << 20
	DefaultMaxBodyBytes    = int64(1 << 20)

	// Rate limit defaults
	DefaultRateLimitRequests = 5
	DefaultRateLimitWindow   = 10 * time.Second
	DefaultRateLimitMaxHold  = 15 * time.Second

	// Link cache defaults
	DefaultLinkCacheBackend    = BackendSQLite
	DefaultLinkCacheTTL        = 7 * 24 * time.Hour
	DefaultSweepSchedule       = "@every 15m"
	DefaultSQLitePath          = "data/proxy_link_cache.db"
	DefaultSQLiteDriver        = "sqlite"
	DefaultSQLiteBusyTimeout   = 5 * time.Second
	DefaultRedisPrefix         = "pfw:"
	DefaultLinkCacheSealSecret = "link-cache-key"
	DefaultLinkCacheKeyFile    = "data/link_cache.key"

	// Upstream defaults
	DefaultUpstreamBaseURL       = "https://api.uspto.gov"
	DefaultCredentialSecret      = "uspto-api-key"
	DefaultAuthHeader            = "X-API-KEY"
	DefaultUpstreamTimeout       = 30 * time.Second
	DefaultUpstreamStreamTimeout = 5 * time.Minute
	DefaultRetryBackoff          = 500 * time.Millisecond
	DefaultUserAgent             = "pfw-relay/1"

	// Sibling defaults
	DefaultSiblingAuthSecret = "internal-auth-secret"
	DefaultSiblingTokenTTL   = 5 * time.Minute
	DefaultSiblingAudience   = "pfw-relay"

	// Secrets defaults
	DefaultDotenvFile     = ".env"
	DefaultSecretCacheTTL = 5 * time.Minute

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "pfw_relay"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "pfw-relay"
)

// Startup modes.
const (
	StartupEager    = "eager"
	StartupOnDemand = "on_demand"
)

// Link cache backends.
const (
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// DefaultAllowedHosts returns a fresh copy of the default upstream hosts.
func DefaultAllowedHosts() []string {
	return []string{"api.uspto.gov", ".uspto.gov"}
}

// Defaults returns a configuration with every default applied. Fields
// whose zero value is meaningful (true booleans, an empty sweep schedule)
// are only defaulted here, so loading starts from Defaults and decodes the
// file over it.
func Defaults() *Config {
	cfg := &Config{
		Proxy: ProxyConfig{
			LoopbackOnly: true,
		},
		LinkCache: LinkCacheConfig{
			SweepSchedule: DefaultSweepSchedule,
			SealSecret:    DefaultLinkCacheSealSecret,
		},
		Siblings: SiblingsConfig{
			Sources: map[string]SiblingSourceConfig{
				"fpd":  {Enabled: true},
				"ptab": {Enabled: true},
			},
		},
		Telemetry: TelemetryConfig{
			Metrics: MetricsConfig{Enabled: DefaultMetricsEnabled},
			Tracing: TracingConfig{SampleRatio: DefaultTracingSampleRatio},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}

// ApplyDefaults fills zero-valued fields.
func ApplyDefaults(cfg *Config) {
	// Proxy defaults
	if cfg.Proxy.ListenAddress == "" {
		cfg.Proxy.ListenAddress = DefaultListenAddress
	}
	if cfg.Proxy.Startup == "" {
		cfg.Proxy.Startup = DefaultStartup
	}
	if cfg.Proxy.ReadTimeout == 0 {
		cfg.Proxy.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Proxy.IdleTimeout == 0 {
		cfg.Proxy.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Proxy.ShutdownTimeout == 0 {
		cfg.Proxy.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Proxy.MaxHeaderBytes == 0 {
		cfg.Proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Proxy.MaxBodyBytes == 0 {
		cfg.Proxy.MaxBodyBytes = DefaultMaxBodyBytes
	}

	// Rate limit defaults
	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = DefaultRateLimitRequests
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = DefaultRateLimitWindow
	}
	if cfg.RateLimit.MaxHold == 0 {
		cfg.RateLimit.MaxHold = DefaultRateLimitMaxHold
	}

	// Link cache defaults
	if cfg.LinkCache.Backend == "" {
		cfg.LinkCache.Backend = DefaultLinkCacheBackend
	}
	if cfg.LinkCache.TTL == 0 {
		cfg.LinkCache.TTL = DefaultLinkCacheTTL
	}
	if cfg.LinkCache.KeyFile == "" {
		cfg.LinkCache.KeyFile = DefaultLinkCacheKeyFile
	}
	if cfg.LinkCache.SQLite.Path == "" {
		cfg.LinkCache.SQLite.Path = DefaultSQLitePath
	}
	if cfg.LinkCache.SQLite.Driver == "" {
		cfg.LinkCache.SQLite.Driver = DefaultSQLiteDriver
	}
	if cfg.LinkCache.SQLite.BusyTimeout == 0 {
		cfg.LinkCache.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.LinkCache.Redis.Prefix == "" {
		cfg.LinkCache.Redis.Prefix = DefaultRedisPrefix
	}

	// Upstream defaults
	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = DefaultUpstreamBaseURL
	}
	if len(cfg.Upstream.AllowedHosts) == 0 {
		cfg.Upstream.AllowedHosts = DefaultAllowedHosts()
	}
	if cfg.Upstream.CredentialSecret == "" {
		cfg.Upstream.CredentialSecret = DefaultCredentialSecret
	}
	if cfg.Upstream.AuthHeader == "" {
		cfg.Upstream.AuthHeader = DefaultAuthHeader
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = DefaultUpstreamTimeout
	}
	if cfg.Upstream.StreamTimeout == 0 {
		cfg.Upstream.StreamTimeout = DefaultUpstreamStreamTimeout
	}
	if cfg.Upstream.RetryBackoff == 0 {
		cfg.Upstream.RetryBackoff = DefaultRetryBackoff
	}
	if cfg.Upstream.UserAgent == "" {
		cfg.Upstream.UserAgent = DefaultUserAgent
	}

	// Sibling defaults
	if cfg.Siblings.Sources == nil {
		cfg.Siblings.Sources = make(map[string]SiblingSourceConfig)
	}
	if cfg.Siblings.AuthSecret == "" {
		cfg.Siblings.AuthSecret = DefaultSiblingAuthSecret
	}
	if cfg.Siblings.TokenTTL == 0 {
		cfg.Siblings.TokenTTL = DefaultSiblingTokenTTL
	}
	if cfg.Siblings.Audience == "" {
		cfg.Siblings.Audience = DefaultSiblingAudience
	}

	// Secrets defaults
	if cfg.Secrets.DotenvFile == "" {
		cfg.Secrets.DotenvFile = DefaultDotenvFile
	}
	if cfg.Secrets.CacheTTL == 0 {
		cfg.Secrets.CacheTTL = DefaultSecretCacheTTL
	}

	// Telemetry defaults
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Tracing.ServiceName == "" {
		cfg.Telemetry.Tracing.ServiceName = DefaultTracingServiceName
	}
}
