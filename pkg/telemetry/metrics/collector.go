// Package metrics exposes the relay's Prometheus metrics.
//
// A Collector owns a private registry so tests and multiple relays in one
// process never collide on the global default registry. All label sets are
// bounded: source is one of the registered source systems, status is an
// HTTP status class, outcome is a link resolution outcome.
//
// Metrics (namespace pfw_relay by default):
//   - downloads_total{source,status}
//   - download_duration_seconds{source}
//   - download_bytes_total{source}
//   - ratelimit_wait_seconds
//   - ratelimit_rejections_total
//   - upstream_retries_total{source}
//   - upstream_errors_total{class}
//   - links_issued_total{source}
//   - link_resolutions_total{outcome}
//   - links_swept_total
//   - registrations_total{source,result}
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "pfw_relay"

// Config configures a Collector.
type Config struct {
	// Enabled turns recording on. A disabled collector still serves an
	// empty /metrics page.
	Enabled bool

	// Namespace defaults to DefaultNamespace.
	Namespace string

	// DurationBuckets for download_duration_seconds.
	DurationBuckets []float64

	// ProcessMetrics adds Go runtime and process collectors.
	ProcessMetrics bool
}

// Collector records relay metrics.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	downloads *DownloadMetrics
	links     *LinkMetrics
}

// NewCollector creates a collector on registry. A nil registry gets a
// fresh one.
func NewCollector(cfg Config, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if len(cfg.DurationBuckets) == 0 {
		// Document downloads range from small abstracts to large file wrappers.
		cfg.DurationBuckets = []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}
	}

	if cfg.ProcessMetrics {
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: cfg.Namespace}),
		)
	}

	return &Collector{
		enabled:   cfg.Enabled,
		registry:  registry,
		downloads: newDownloadMetrics(cfg, registry),
		links:     newLinkMetrics(cfg, registry),
	}
}

// Enabled reports whether the collector records.
func (c *Collector) Enabled() bool {
	return c != nil && c.enabled
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
