package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"pfw-hq/relay/pkg/proxy/types"
	"pfw-hq/relay/pkg/telemetry/logging"
)

// Recovery turns a handler panic into a JSON 500. The panic value and
// stack are logged, never sent to the client.
func Recovery(logger *slog.Logger) Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logging.FromContext(r.Context(), logger).ErrorContext(r.Context(), "panic in handler",
					"panic", rec,
					"method", r.Method,
					"path", logging.RedactPath(r.URL.Path),
					"stack", string(debug.Stack()),
				)
				types.WriteError(w, http.StatusInternalServerError, types.MessageInternal, GetRequestID(r.Context()))
			}()

			next.ServeHTTP(w, r)
		})
	}
}
