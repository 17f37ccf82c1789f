package config

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidate_Defaults(t *testing.T) {
	if err := Validate(Defaults()); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		field  string
	}{
		{"bad listen address", func(c *Config) { c.Proxy.ListenAddress = "localhost" }, "proxy.listen_address"},
		{"relative public url", func(c *Config) { c.Proxy.PublicBaseURL = "/relay" }, "proxy.public_base_url"},
		{"ftp public url", func(c *Config) { c.Proxy.PublicBaseURL = "ftp://localhost:8080" }, "proxy.public_base_url"},
		{"query in public url", func(c *Config) { c.Proxy.PublicBaseURL = "http://localhost:8080?x=1" }, "proxy.public_base_url"},
		{"zero body limit", func(c *Config) { c.Proxy.MaxBodyBytes = 0 }, "proxy.max_body_bytes"},
		{"negative write timeout", func(c *Config) { c.Proxy.WriteTimeout = -time.Second }, "proxy.write_timeout"},
		{"zero requests", func(c *Config) { c.RateLimit.Requests = 0 }, "rate_limit.requests"},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, "rate_limit.window"},
		{"negative hold", func(c *Config) { c.RateLimit.MaxHold = -1 }, "rate_limit.max_hold"},
		{"zero ttl", func(c *Config) { c.LinkCache.TTL = 0 }, "link_cache.ttl"},
		{"unknown driver", func(c *Config) { c.LinkCache.SQLite.Driver = "pgx" }, "link_cache.sqlite.driver"},
		{"no allowed hosts", func(c *Config) { c.Upstream.AllowedHosts = nil }, "upstream.allowed_hosts"},
		{"no credential secret", func(c *Config) { c.Upstream.CredentialSecret = "" }, "upstream.credential_secret"},
		{"no auth header", func(c *Config) { c.Upstream.AuthHeader = "" }, "upstream.auth_header"},
		{"tls 1.1", func(c *Config) { c.Upstream.TLS.MinVersion = "1.1" }, "upstream.tls"},
		{"no sibling secret", func(c *Config) { c.Siblings.AuthSecret = "" }, "siblings.auth_secret"},
		{"watch without dir", func(c *Config) { c.Secrets.Watch = true }, "secrets.watch"},
		{"bad log level", func(c *Config) { c.Telemetry.Logging.Level = "trace" }, "telemetry.logging.level"},
		{"bad metrics path", func(c *Config) { c.Telemetry.Metrics.Path = "metrics" }, "telemetry.metrics.path"},
		{"tracing without endpoint", func(c *Config) { c.Telemetry.Tracing.Enabled = true }, "telemetry.tracing.endpoint"},
		{"ratio above one", func(c *Config) { c.Telemetry.Tracing.SampleRatio = 2 }, "telemetry.tracing.sample_ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(cfg)

			err := Validate(cfg)
			var verr ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if !verr.Has(tt.field) {
				t.Errorf("expected error on %s, got %v", tt.field, verr)
			}
		})
	}
}

func TestValidate_SiblingSecretOptionalWhenDisabled(t *testing.T) {
	cfg := Defaults()
	cfg.Siblings.AuthSecret = ""
	cfg.Siblings.Sources = map[string]SiblingSourceConfig{"fpd": {Enabled: false}}

	if err := Validate(cfg); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidationError_Error(t *testing.T) {
	single := ValidationError{Errors: []FieldError{{Field: "a.b", Message: "bad"}}}
	if single.Error() != "a.b: bad" {
		t.Errorf("unexpected message: %q", single.Error())
	}

	multi := ValidationError{Errors: []FieldError{
		{Field: "a", Message: "x"},
		{Field: "b", Message: "y"},
	}}
	if !strings.HasPrefix(multi.Error(), "2 errors:") || !strings.Contains(multi.Error(), "  - b: y") {
		t.Errorf("unexpected message: %q", multi.Error())
	}
}

func TestProxyConfig_BaseURL(t *testing.T) {
	tests := []struct {
		cfg  ProxyConfig
		want string
	}{
		{ProxyConfig{ListenAddress: "127.0.0.1:8080"}, "http://localhost:8080"},
		{ProxyConfig{ListenAddress: "0.0.0.0:9000"}, "http://localhost:9000"},
		{ProxyConfig{ListenAddress: "127.0.0.1:8080", PublicBaseURL: "https://relay.internal"}, "https://relay.internal"},
	}
	for _, tt := range tests {
		if got := tt.cfg.BaseURL(); got != tt.want {
			t.Errorf("BaseURL(%+v) = %q, want %q", tt.cfg, got, tt.want)
		}
	}
}
