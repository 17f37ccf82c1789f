// Package middleware provides the relay's HTTP middleware.
//
// The chain, outermost first:
//
//	Recovery -> RequestID -> Logging -> SecurityHeaders -> LoopbackOnly
//
// Recovery sits outside everything so a panic in any layer still produces a
// JSON 500. RequestID runs before Logging so every log line carries the
// correlation id.
package middleware

import "net/http"

// Middleware wraps a handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that mws[0] is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}
