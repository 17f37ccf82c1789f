package metrics

import (
	"pfw-hq/relay/pkg/linkcache"

	"github.com/prometheus/client_golang/prometheus"
)

// LinkMetrics tracks the link cache lifecycle and sibling registrations.
type LinkMetrics struct {
	issued        *prometheus.CounterVec
	resolutions   *prometheus.CounterVec
	swept         prometheus.Counter
	registrations *prometheus.CounterVec
}

func newLinkMetrics(cfg Config, registry *prometheus.Registry) *LinkMetrics {
	lm := &LinkMetrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "links_issued_total",
			Help:      "Download tokens issued",
		}, []string{"source"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "link_resolutions_total",
			Help:      "Token resolutions by outcome (hit, miss, expired)",
		}, []string{"outcome"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "links_swept_total",
			Help:      "Expired tokens removed by the sweeper",
		}),
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "registrations_total",
			Help:      "Sibling document registrations by result",
		}, []string{"source", "result"}),
	}

	registry.MustRegister(lm.issued, lm.resolutions, lm.swept, lm.registrations)
	return lm
}

var _ linkcache.Observer = (*Collector)(nil)

// LinkIssued implements linkcache.Observer.
func (c *Collector) LinkIssued(source linkcache.SourceSystem) {
	if !c.Enabled() {
		return
	}
	c.links.issued.WithLabelValues(string(source)).Inc()
}

// LinkResolved implements linkcache.Observer.
func (c *Collector) LinkResolved(outcome string) {
	if !c.Enabled() {
		return
	}
	c.links.resolutions.WithLabelValues(outcome).Inc()
}

// LinksSwept implements linkcache.Observer.
func (c *Collector) LinksSwept(n int) {
	if !c.Enabled() || n <= 0 {
		return
	}
	c.links.swept.Add(float64(n))
}

// RecordRegistration counts a sibling registration; result is "issued",
// "reused" or "rejected".
func (c *Collector) RecordRegistration(source, result string) {
	if !c.Enabled() {
		return
	}
	c.links.registrations.WithLabelValues(source, result).Inc()
}
