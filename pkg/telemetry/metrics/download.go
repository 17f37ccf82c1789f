package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DownloadMetrics tracks the download path: dispatch, pacing and upstream.
type DownloadMetrics struct {
	total        *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	bytes        *prometheus.CounterVec
	wait         prometheus.Histogram
	rejections   prometheus.Counter
	retries      *prometheus.CounterVec
	upstreamErrs *prometheus.CounterVec
}

func newDownloadMetrics(cfg Config, registry *prometheus.Registry) *DownloadMetrics {
	dm := &DownloadMetrics{
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "downloads_total",
			Help:      "Download requests by source system and response status",
		}, []string{"source", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "download_duration_seconds",
			Help:      "Time from request to end of body stream",
			Buckets:   cfg.DurationBuckets,
		}, []string{"source"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "download_bytes_total",
			Help:      "Document bytes streamed to clients",
		}, []string{"source"}),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Name:      "ratelimit_wait_seconds",
			Help:      "Time requests were held by the download rate limiter",
			Buckets:   []float64{0, 0.1, 0.5, 1, 2, 5, 10, 15},
		}),
		rejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "ratelimit_rejections_total",
			Help:      "Requests rejected because the hold would exceed max_hold",
		}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "upstream_retries_total",
			Help:      "Upstream fetches retried after a transient failure",
		}, []string{"source"}),
		upstreamErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures by class",
		}, []string{"class"}),
	}

	registry.MustRegister(dm.total, dm.duration, dm.bytes, dm.wait, dm.rejections, dm.retries, dm.upstreamErrs)
	return dm
}

// RecordDownload records a finished download request.
func (c *Collector) RecordDownload(source string, status int, duration time.Duration, bytes int64) {
	if !c.Enabled() {
		return
	}
	if source == "" {
		source = "unknown"
	}
	c.downloads.total.WithLabelValues(source, strconv.Itoa(status)).Inc()
	c.downloads.duration.WithLabelValues(source).Observe(duration.Seconds())
	if bytes > 0 {
		c.downloads.bytes.WithLabelValues(source).Add(float64(bytes))
	}
}

// RecordRateLimitWait records how long a request was held.
func (c *Collector) RecordRateLimitWait(d time.Duration) {
	if !c.Enabled() {
		return
	}
	c.downloads.wait.Observe(d.Seconds())
}

// RecordRateLimitRejection counts a 429.
func (c *Collector) RecordRateLimitRejection() {
	if !c.Enabled() {
		return
	}
	c.downloads.rejections.Inc()
}

// RecordUpstreamRetry counts a retried fetch.
func (c *Collector) RecordUpstreamRetry(source string) {
	if !c.Enabled() {
		return
	}
	c.downloads.retries.WithLabelValues(source).Inc()
}

// RecordUpstreamError counts an upstream failure by class, e.g.
// "not_found" or "unavailable".
func (c *Collector) RecordUpstreamError(class string) {
	if !c.Enabled() {
		return
	}
	c.downloads.upstreamErrs.WithLabelValues(class).Inc()
}
