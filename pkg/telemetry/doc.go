// Package telemetry groups the relay's observability: structured logging
// (logging), Prometheus metrics (metrics), OpenTelemetry tracing (tracing)
// and liveness/readiness checks (health).
package telemetry
