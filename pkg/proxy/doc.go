// Package proxy assembles the relay's HTTP surface.
//
// NewHandler wires the download dispatcher, sibling registration, admin
// and probe endpoints behind the middleware chain:
//
//	GET  /{token}/{filename}   download a document through a link
//	POST /register/{source}    sibling registration (Bearer service token)
//	GET  /admin/cache/stats    link cache counts
//	POST /admin/cache/sweep    delete expired links now
//	GET  /admin/rate-limit     rate limiter state
//	GET  /health, /ready       liveness and readiness probes
//	GET  /version              build information
//	GET  /metrics              Prometheus metrics, when enabled
//
// Any other path is answered with 400.
package proxy
