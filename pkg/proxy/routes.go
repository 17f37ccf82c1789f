package proxy

import (
	"log/slog"
	"net/http"
	"time"

	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy/handlers"
	"pfw-hq/relay/pkg/proxy/middleware"
	"pfw-hq/relay/pkg/ratelimit"
	"pfw-hq/relay/pkg/security/auth"
	"pfw-hq/relay/pkg/security/siblingauth"
	"pfw-hq/relay/pkg/telemetry/health"
	"pfw-hq/relay/pkg/telemetry/metrics"
	"pfw-hq/relay/pkg/telemetry/tracing"
)

// Deps are the components the HTTP surface serves from.
type Deps struct {
	Cache   *linkcache.Cache
	Router  *docstore.Router
	Limiter *ratelimit.RollingWindow
	Fetcher handlers.Fetcher

	// Verifier authenticates sibling registrations. Nil disables
	// POST /register/{source}.
	Verifier *siblingauth.Verifier

	// AdminAuth guards /admin routes. Nil leaves them open to any peer
	// LoopbackOnly admits.
	AdminAuth *auth.APIKeyMiddleware

	Health  *health.Checker
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
}

// Options tune the HTTP surface.
type Options struct {
	PublicBaseURL string
	MaxBodyBytes  int64
	LoopbackOnly  bool

	StreamTimeout time.Duration
	RetryBackoff  time.Duration

	// MetricsPath serves Prometheus metrics when the collector is enabled.
	MetricsPath string

	// SiblingEnabled gates registration per source.
	SiblingEnabled func(source string) bool

	Version   string
	Commit    string
	BuildTime string
}

// NewHandler builds the routed, middleware-wrapped handler.
func NewHandler(deps Deps, opts Options) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	checker := deps.Health
	if checker == nil {
		checker = health.New(0)
	}

	mux := http.NewServeMux()

	download := handlers.NewDownloadHandler(deps.Cache, deps.Router, deps.Limiter, deps.Fetcher, handlers.DownloadConfig{
		StreamTimeout: opts.StreamTimeout,
		RetryBackoff:  opts.RetryBackoff,
		Logger:        logger,
		Metrics:       deps.Metrics,
		Tracer:        deps.Tracer,
	})
	mux.Handle("/{token}/{filename}", download)

	if deps.Verifier != nil {
		register := handlers.NewRegisterHandler(deps.Router, deps.Verifier, handlers.RegisterConfig{
			PublicBaseURL: opts.PublicBaseURL,
			MaxBodyBytes:  opts.MaxBodyBytes,
			Enabled:       opts.SiblingEnabled,
			Logger:        logger,
			Metrics:       deps.Metrics,
		})
		mux.Handle("/register/{source}", middleware.MaxBodyBytes(opts.MaxBodyBytes)(register))
	}

	admin := handlers.NewAdminHandler(deps.Cache, deps.Limiter, logger)
	guard := func(h http.HandlerFunc) http.Handler {
		if deps.AdminAuth == nil {
			return h
		}
		return deps.AdminAuth.Handle(h)
	}
	mux.Handle("/admin/cache/stats", guard(admin.CacheStats))
	mux.Handle("/admin/cache/sweep", guard(admin.CacheSweep))
	mux.Handle("/admin/rate-limit", guard(admin.RateLimit))

	mux.Handle("/health", checker.LivenessHandler())
	mux.Handle("/ready", checker.ReadinessHandler())
	mux.Handle("/version", health.VersionHandler(opts.Version, opts.Commit, opts.BuildTime))

	if deps.Metrics.Enabled() {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, deps.Metrics.Handler())
	}

	mux.Handle("/", handlers.InvalidPathHandler())

	return middleware.Chain(mux,
		middleware.Recovery(logger),
		middleware.RequestID,
		middleware.Logging(logger),
		tracing.HTTPMiddleware,
		middleware.SecurityHeaders,
		middleware.LoopbackOnly(opts.LoopbackOnly),
	)
}
