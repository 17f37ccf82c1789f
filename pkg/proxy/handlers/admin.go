package handlers

import (
	"log/slog"
	"net/http"

	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy/middleware"
	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/ratelimit"
	"pfw-hq/relay/pkg/telemetry/logging"
)

// AdminHandler serves the operator endpoints under /admin.
type AdminHandler struct {
	cache   *linkcache.Cache
	limiter *ratelimit.RollingWindow
	logger  *slog.Logger
}

// NewAdminHandler creates the admin endpoints.
func NewAdminHandler(cache *linkcache.Cache, limiter *ratelimit.RollingWindow, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{cache: cache, limiter: limiter, logger: logger.With("component", "admin")}
}

// CacheStats serves GET /admin/cache/stats.
func (h *AdminHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to read link cache stats", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.MessageInternal, middleware.GetRequestID(r.Context()))
		return
	}
	types.WriteJSON(w, http.StatusOK, types.CacheStatsResponse{
		Stats:      stats,
		TTLSeconds: int64(h.cache.TTL().Seconds()),
	})
}

// CacheSweep serves POST /admin/cache/sweep.
func (h *AdminHandler) CacheSweep(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	logger := logging.FromContext(r.Context(), h.logger)
	removed, err := h.cache.Sweep(r.Context())
	if err != nil {
		logger.Error("link cache sweep failed", "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.MessageInternal, middleware.GetRequestID(r.Context()))
		return
	}
	logger.Info("link cache swept on request", "removed", removed)
	types.WriteJSON(w, http.StatusOK, types.SweepResponse{Removed: removed})
}

// RateLimit serves GET /admin/rate-limit.
func (h *AdminHandler) RateLimit(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	types.WriteJSON(w, http.StatusOK, types.RateLimitResponse{
		Limit:          h.limiter.Limit(),
		Remaining:      h.limiter.Remaining(),
		WindowSeconds:  h.limiter.Window().Seconds(),
		MaxHoldSeconds: h.limiter.MaxHold().Seconds(),
		ResetAt:        h.limiter.ResetAt(),
	})
}
