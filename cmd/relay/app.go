package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"pfw-hq/relay/pkg/cli"
	"pfw-hq/relay/pkg/config"
	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/issuer"
	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy"
	"pfw-hq/relay/pkg/ratelimit"
	"pfw-hq/relay/pkg/security/auth"
	"pfw-hq/relay/pkg/security/secrets"
	"pfw-hq/relay/pkg/security/siblingauth"
	"pfw-hq/relay/pkg/server"
	"pfw-hq/relay/pkg/telemetry/health"
	"pfw-hq/relay/pkg/telemetry/logging"
	"pfw-hq/relay/pkg/telemetry/metrics"
	"pfw-hq/relay/pkg/telemetry/tracing"
	"pfw-hq/relay/pkg/upstream"
)

// app holds every component built from one configuration.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	secrets *secrets.Manager
	files   *secrets.FileProvider

	metrics *metrics.Collector
	tracer  *tracing.Tracer

	cache   *linkcache.Cache
	router  *docstore.Router
	limiter *ratelimit.RollingWindow

	server *server.Server
	issuer *issuer.Issuer
}

// loadConfig initializes the process configuration from --config.
func loadConfig() (*config.Config, error) {
	if err := config.Initialize(cfgFile); err != nil {
		var verr config.ValidationError
		if errors.As(err, &verr) {
			return nil, err
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	return config.MustGetConfig(), nil
}

// newLogger builds the process logger. --verbose forces debug.
func newLogger(cfg config.LoggingConfig, w io.Writer) (*slog.Logger, error) {
	level := cfg.Level
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Config{
		Level:     level,
		Format:    cfg.Format,
		AddSource: cfg.AddSource,
		Writer:    w,
	})
}

// newSecrets layers environment, dotenv and file providers in that order.
func newSecrets(cfg config.SecretsConfig, logger *slog.Logger) (*secrets.Manager, *secrets.FileProvider, error) {
	providers := []secrets.Provider{secrets.NewEnvProvider(cfg.EnvPrefix)}
	if cfg.DotenvFile != "" {
		providers = append(providers, secrets.NewDotenvProvider(cfg.DotenvFile))
	}

	var files *secrets.FileProvider
	if cfg.FileDir != "" {
		var err error
		files, err = secrets.NewFileProvider(cfg.FileDir, cfg.Watch, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open secrets directory: %w", err)
		}
		providers = append(providers, files)
	}
	return secrets.NewManager(providers, cfg.CacheTTL), files, nil
}

// newSealer returns the link cache sealer, or nil when sealing is off.
// A configured secret wins over the generated key file.
func newSealer(ctx context.Context, cfg config.LinkCacheConfig, mgr *secrets.Manager, logger *slog.Logger) (*linkcache.Sealer, error) {
	if cfg.SealSecret == "" {
		return nil, nil
	}

	encoded, err := mgr.Get(ctx, cfg.SealSecret)
	switch {
	case err == nil:
		return linkcache.NewSealerFromBase64(encoded)
	case !errors.Is(err, secrets.ErrNotFound):
		return nil, err
	}

	if cfg.KeyFile == "" {
		return nil, fmt.Errorf("link cache seal secret %q not found and no key file configured", cfg.SealSecret)
	}
	logger.Debug("seal secret not set, using key file", "path", cfg.KeyFile)
	return linkcache.LoadOrCreateKeyFile(cfg.KeyFile)
}

// newBackend opens the configured link cache backend.
func newBackend(ctx context.Context, cfg config.LinkCacheConfig) (linkcache.Backend, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return linkcache.NewMemoryBackend(), nil
	case config.BackendRedis:
		return linkcache.NewRedisBackend(ctx, linkcache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
	case config.BackendSQLite, "":
		return linkcache.NewSQLiteBackend(linkcache.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
	default:
		return nil, fmt.Errorf("unsupported link cache backend: %s", cfg.Backend)
	}
}

// newApp assembles the relay. The caller must call close.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	logger, err := newLogger(cfg.Telemetry.Logging, logOut)
	if err != nil {
		return nil, cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close(context.Background())
		}
	}()

	a.secrets, a.files, err = newSecrets(cfg.Secrets, logger)
	if err != nil {
		return nil, err
	}

	a.metrics = metrics.NewCollector(metrics.Config{
		Enabled:        cfg.Telemetry.Metrics.Enabled,
		Namespace:      cfg.Telemetry.Metrics.Namespace,
		ProcessMetrics: true,
	}, prometheus.NewRegistry())

	a.tracer, err = tracing.New(ctx, tracing.Config{
		Enabled:        cfg.Telemetry.Tracing.Enabled,
		Endpoint:       cfg.Telemetry.Tracing.Endpoint,
		Insecure:       cfg.Telemetry.Tracing.Insecure,
		SampleRatio:    cfg.Telemetry.Tracing.SampleRatio,
		ServiceName:    cfg.Telemetry.Tracing.ServiceName,
		ServiceVersion: Version,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	sealer, err := newSealer(ctx, cfg.LinkCache, a.secrets, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize link sealing: %w", err)
	}
	backend, err := newBackend(ctx, cfg.LinkCache)
	if err != nil {
		return nil, fmt.Errorf("failed to open link cache: %w", err)
	}
	a.cache = linkcache.New(backend, linkcache.Config{
		TTL:      cfg.LinkCache.TTL,
		Sealer:   sealer,
		Logger:   logger,
		Observer: a.metrics,
	})

	hosts := docstore.HostPolicy{Hosts: cfg.Upstream.AllowedHosts}
	a.router = docstore.NewRouter(
		docstore.NewNativeAdapter(cfg.Upstream.BaseURL, hosts),
		docstore.NewFPDAdapter(a.cache, hosts),
		docstore.NewPTABAdapter(a.cache, hosts),
	)

	a.limiter = ratelimit.NewRollingWindow(cfg.RateLimit.Requests, cfg.RateLimit.Window, cfg.RateLimit.MaxHold)

	a.issuer = issuer.New(a.cache, a.router, issuer.Config{
		PublicBaseURL: cfg.Proxy.BaseURL(),
		Logger:        logger,
	})

	ok = true
	return a, nil
}

// withServer adds the HTTP surface and makes the issuer start it on demand.
func (a *app) withServer() error {
	cfg := a.cfg

	tlsConfig, err := cfg.Upstream.TLS.ToTLSConfig()
	if err != nil {
		return cli.NewConfigError("upstream.tls", err.Error())
	}

	client := upstream.NewClient(upstream.Config{
		BaseURL:    cfg.Upstream.BaseURL,
		Hosts:      docstore.HostPolicy{Hosts: cfg.Upstream.AllowedHosts},
		AuthHeader: cfg.Upstream.AuthHeader,
		Timeout:    cfg.Upstream.Timeout,
		UserAgent:  cfg.Upstream.UserAgent,
		TLS:        tlsConfig,
		Logger:     a.logger,
	}, a.secrets.Credential(cfg.Upstream.CredentialSecret))

	var verifier *siblingauth.Verifier
	if cfg.Siblings.Enabled(string(linkcache.SourceFPD)) || cfg.Siblings.Enabled(string(linkcache.SourcePTAB)) {
		verifier = siblingauth.NewVerifier(a.secrets.Credential(cfg.Siblings.AuthSecret), cfg.Siblings.Audience)
	}

	var adminAuth *auth.APIKeyMiddleware
	if cfg.Proxy.AdminSecret != "" {
		adminAuth = auth.NewAPIKeyMiddleware(auth.NewKeyValidator("operator", a.secrets.Credential(cfg.Proxy.AdminSecret)), nil)
	} else if !cfg.Proxy.LoopbackOnly {
		a.logger.Warn("admin endpoints are reachable from any peer; set proxy.admin_secret")
	}

	checker := health.New(0)
	checker.Register("link_cache", a.cache.Ping)

	handler := proxy.NewHandler(proxy.Deps{
		Cache:     a.cache,
		Router:    a.router,
		Limiter:   a.limiter,
		Fetcher:   client,
		Verifier:  verifier,
		AdminAuth: adminAuth,
		Health:    checker,
		Metrics:   a.metrics,
		Tracer:    a.tracer,
		Logger:    a.logger,
	}, proxy.Options{
		PublicBaseURL:  cfg.Proxy.BaseURL(),
		MaxBodyBytes:   cfg.Proxy.MaxBodyBytes,
		LoopbackOnly:   cfg.Proxy.LoopbackOnly,
		StreamTimeout:  cfg.Upstream.StreamTimeout,
		RetryBackoff:   cfg.Upstream.RetryBackoff,
		MetricsPath:    cfg.Telemetry.Metrics.Path,
		SiblingEnabled: cfg.Siblings.Enabled,
		Version:        Version,
		Commit:         GitCommit,
		BuildTime:      BuildDate,
	})

	a.server = server.NewServer(&cfg.Proxy, handler, a.logger)
	a.issuer = issuer.New(a.cache, a.router, issuer.Config{
		PublicBaseURL: cfg.Proxy.BaseURL(),
		Starter:       a.server,
		Logger:        a.logger,
	})
	return nil
}

// close releases everything newApp and withServer opened.
func (a *app) close(ctx context.Context) {
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			a.logger.Error("server shutdown failed", "error", err)
		}
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", "error", err)
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("link cache close failed", "error", err)
		}
	}
	if a.files != nil {
		a.files.Close()
	}
}
