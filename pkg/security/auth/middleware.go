package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/telemetry/logging"
)

// AdminKeyHeader is the dedicated admin key header.
const AdminKeyHeader = "X-Admin-Key"

// APIKeySource defines where to extract API keys from.
type APIKeySource struct {
	Name   string // header name
	Scheme string // "Bearer", etc. (optional)
}

// DefaultSources accepts "Authorization: Bearer <key>" and X-Admin-Key.
func DefaultSources() []APIKeySource {
	return []APIKeySource{
		{Name: "Authorization", Scheme: "Bearer"},
		{Name: AdminKeyHeader},
	}
}

// APIKeyMiddleware is HTTP middleware for API key authentication.
type APIKeyMiddleware struct {
	validator Validator
	sources   []APIKeySource
	logger    *slog.Logger
}

// NewAPIKeyMiddleware creates the middleware. Nil sources use DefaultSources.
func NewAPIKeyMiddleware(validator Validator, sources []APIKeySource) *APIKeyMiddleware {
	if len(sources) == 0 {
		sources = DefaultSources()
	}
	return &APIKeyMiddleware{
		validator: validator,
		sources:   sources,
		logger:    slog.Default().With("component", "auth"),
	}
}

// Handle wraps next with API key authentication. Failures are answered
// with the relay's JSON error body: 401 for a missing or wrong key, 503
// when the expected key cannot be loaded.
func (m *APIKeyMiddleware) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := logging.GetRequestID(r.Context())

		key, source := m.extractAPIKey(r)
		info, err := m.validator.Validate(r.Context(), key)
		if err != nil {
			status := http.StatusUnauthorized
			message := types.MessageUnauthorized
			if errors.Is(err, ErrKeyUnavailable) {
				status = http.StatusServiceUnavailable
				message = types.MessageUnavailable
				m.logger.Error("admin key unavailable", "error", err, "path", logging.RedactPath(r.URL.Path))
			} else {
				m.logger.Warn("admin authentication failed",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", logging.RedactPath(r.URL.Path),
				)
			}
			if status == http.StatusUnauthorized {
				w.Header().Set("WWW-Authenticate", `Bearer realm="admin"`)
			}
			types.WriteError(w, status, message, requestID)
			return
		}

		info.Source = source
		m.logger.Debug("API key authenticated", "name", info.Name, "source", source)

		ctx := context.WithValue(r.Context(), apiKeyInfoKey, info)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractAPIKey returns the first key found and where it was found.
func (m *APIKeyMiddleware) extractAPIKey(r *http.Request) (key, source string) {
	for _, s := range m.sources {
		value := strings.TrimSpace(r.Header.Get(s.Name))
		if value == "" {
			continue
		}
		if s.Scheme == "" {
			return value, "header:" + s.Name
		}
		prefix := s.Scheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):]), "header:" + s.Name
		}
	}
	return "", ""
}

// Context key for API key info
type contextKey string

// #nosec G101 - This is a context key constant, not a credential
const apiKeyInfoKey contextKey = "api_key_info"

// GetAPIKeyInfo retrieves API key info from request context.
func GetAPIKeyInfo(ctx context.Context) (*APIKeyInfo, bool) {
	info, ok := ctx.Value(apiKeyInfoKey).(*APIKeyInfo)
	return info, ok
}
