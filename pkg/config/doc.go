// Package config loads and validates the relay configuration.
//
// Configuration is layered, later layers winning:
//
//  1. Built-in defaults (defaults.go)
//  2. The YAML file (relay.yaml by default)
//  3. A .env file, loaded without overriding variables already set
//  4. PFW_* environment variables
//
// Validation runs last and reports every problem at once:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("relay.yaml")
//	if err != nil {
//	    var verr config.ValidationError
//	    if errors.As(err, &verr) {
//	        for _, fe := range verr.Errors {
//	            fmt.Println(fe.Field, fe.Message)
//	        }
//	    }
//	}
//
// # Environment Variables
//
//   - PFW_PROXY_LISTEN_ADDRESS, PFW_PROXY_PORT (port only), PFW_PROXY_PUBLIC_BASE_URL,
//     PFW_PROXY_STARTUP, PFW_PROXY_LOOPBACK_ONLY
//   - PFW_RATE_LIMIT_REQUESTS, PFW_RATE_LIMIT_WINDOW, PFW_RATE_LIMIT_MAX_HOLD
//   - PFW_LINK_CACHE_BACKEND, PFW_LINK_CACHE_TTL, PFW_LINK_CACHE_SQLITE_PATH,
//     PFW_LINK_CACHE_SQLITE_DRIVER, PFW_LINK_CACHE_REDIS_ADDR, PFW_LINK_CACHE_REDIS_PASSWORD
//   - PFW_UPSTREAM_BASE_URL, PFW_UPSTREAM_TIMEOUT
//   - PFW_SECRETS_FILE_DIR, PFW_SECRETS_DOTENV_FILE, PFW_SECRETS_ENV_PREFIX
//   - PFW_TELEMETRY_LOGGING_LEVEL, PFW_TELEMETRY_LOGGING_FORMAT,
//     PFW_TELEMETRY_METRICS_ENABLED, PFW_TELEMETRY_TRACING_ENABLED,
//     PFW_TELEMETRY_TRACING_ENDPOINT, PFW_TELEMETRY_TRACING_SAMPLE_RATIO
//
// Secret values (the upstream API key, the sibling signing secret, the link
// cache sealing key) are never part of the configuration. The configuration
// only names them; they are resolved through pkg/security/secrets.
package config
