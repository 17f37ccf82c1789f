package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pfw-hq/relay/pkg/docstore"
	"pfw-hq/relay/pkg/issuer"
	"pfw-hq/relay/pkg/linkcache"
	"pfw-hq/relay/pkg/proxy/middleware"
	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/security/siblingauth"
	"pfw-hq/relay/pkg/telemetry/logging"
	"pfw-hq/relay/pkg/telemetry/metrics"
)

// Registration outcomes as recorded in metrics.
const (
	registrationIssued   = "issued"
	registrationReused   = "reused"
	registrationRejected = "rejected"
)

// RegisterConfig configures a RegisterHandler.
type RegisterConfig struct {
	// PublicBaseURL prefixes the returned token_url.
	PublicBaseURL string

	// MaxBodyBytes caps the JSON body. Default: 1 MiB
	MaxBodyBytes int64

	// Enabled reports whether a sibling source may register. Nil allows
	// every source with a registered adapter.
	Enabled func(source string) bool

	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// RegisterHandler serves POST /register/{source}.
type RegisterHandler struct {
	router   *docstore.Router
	verifier *siblingauth.Verifier
	base     string
	maxBody  int64
	enabled  func(string) bool
	logger   *slog.Logger
	metrics  *metrics.Collector
}

// NewRegisterHandler creates the sibling registration endpoint.
func NewRegisterHandler(router *docstore.Router, verifier *siblingauth.Verifier, cfg RegisterConfig) *RegisterHandler {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 1 << 20
	}
	if cfg.Enabled == nil {
		cfg.Enabled = func(string) bool { return true }
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RegisterHandler{
		router:   router,
		verifier: verifier,
		base:     cfg.PublicBaseURL,
		maxBody:  cfg.MaxBodyBytes,
		enabled:  cfg.Enabled,
		logger:   cfg.Logger.With("component", "registration"),
		metrics:  cfg.Metrics,
	}
}

// ServeHTTP implements http.Handler.
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)
	logger := logging.FromContext(ctx, h.logger)
	source := r.PathValue("source")

	reject := func(status int, reason string, err error) {
		logger.Warn("registration rejected",
			"source", source,
			"status", status,
			"reason", reason,
			"error", err,
		)
		h.metrics.RecordRegistration(source, registrationRejected)
		if status == http.StatusUnauthorized {
			w.Header().Set("WWW-Authenticate", `Bearer realm="pfw-relay"`)
		}
		types.WriteError(w, status, messageFor(status), requestID)
	}

	adapter, ok := h.router.Registered(linkcache.SourceSystem(source))
	if !ok || !h.enabled(source) {
		reject(http.StatusNotFound, "unknown or disabled source", nil)
		return
	}

	bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || bearer == "" {
		reject(http.StatusUnauthorized, "missing bearer token", nil)
		return
	}
	claims, err := h.verifier.Verify(ctx, strings.TrimSpace(bearer), source)
	switch {
	case errors.Is(err, siblingauth.ErrExpired), errors.Is(err, siblingauth.ErrInvalid):
		reject(http.StatusUnauthorized, "service token rejected", err)
		return
	case err != nil:
		logger.Error("service token secret unavailable", "error", err)
		types.WriteError(w, http.StatusServiceUnavailable, types.MessageUnavailable, requestID)
		return
	}

	var req types.RegistrationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, h.maxBody))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			reject(http.StatusRequestEntityTooLarge, "body too large", nil)
			return
		}
		reject(http.StatusBadRequest, "malformed body", err)
		return
	}
	if err := req.Validate(); err != nil {
		reject(http.StatusBadRequest, "missing field", err)
		return
	}

	ref := req.Ref()
	if claims.Doc.Key != ref.Key || claims.Doc.DocumentID != ref.DocumentID {
		reject(http.StatusUnauthorized, "service token issued for another document", nil)
		return
	}

	tok, reused, err := adapter.Register(ctx, docstore.Registration{
		Ref:             ref,
		DisplayFilename: strings.TrimSpace(req.Filename),
		ContentHint:     req.Hint(),
	})
	if err != nil {
		if errors.Is(err, docstore.ErrInvalidReference) {
			reject(http.StatusBadRequest, "invalid reference", err)
			return
		}
		logger.Error("registration failed", "source", source, "error", err)
		types.WriteError(w, http.StatusInternalServerError, types.MessageInternal, requestID)
		return
	}

	result, status := registrationIssued, http.StatusCreated
	if reused {
		result, status = registrationReused, http.StatusOK
	}
	h.metrics.RecordRegistration(source, result)
	logger.Info("document registered",
		"source", source,
		"document_id", ref.DocumentID,
		"reused", reused,
		"expires_at", tok.ExpiresAt,
	)

	types.WriteJSON(w, status, types.RegistrationResponse{
		Success:   true,
		TokenURL:  issuer.FormatLink(h.base, tok.Token, tok.DisplayFilename),
		Reused:    reused,
		ExpiresAt: tok.ExpiresAt,
	})
}
