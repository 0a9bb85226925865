// Package metrics collects the portal's Prometheus metrics and serves them.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records page, flow, tab and provider metrics. It satisfies
// portal.Recorder and browser.Recorder.
type Collector struct {
	pagesShown      *prometheus.CounterVec
	flows           *prometheus.CounterVec
	flowDuration    *prometheus.HistogramVec
	tabsOpen        prometheus.Gauge
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		pagesShown: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_pages_shown_total",
			Help: "Page activations by page.",
		}, []string{"page"}),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_flows_total",
			Help: "Finished portal flows by flow and outcome.",
		}, []string{"flow", "outcome"}),
		flowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_flow_duration_seconds",
			Help:    "Duration of portal flows.",
			Buckets: prometheus.DefBuckets,
		}, []string{"flow"}),
		tabsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "portal_tabs_open",
			Help: "Browser tabs currently held by the server.",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_provider_requests_total",
			Help: "Provider calls by operation and result.",
		}, []string{"operation", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "portal_provider_latency_seconds",
			Help:    "Provider call latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(
		c.pagesShown,
		c.flows,
		c.flowDuration,
		c.tabsOpen,
		c.providerCalls,
		c.providerLatency,
	)
	return c
}

// PageShown counts one page activation.
func (c *Collector) PageShown(page string) {
	c.pagesShown.WithLabelValues(page).Inc()
}

// FlowFinished counts a finished flow. Busy rejections carry no duration.
func (c *Collector) FlowFinished(flow, outcome string, elapsed time.Duration) {
	c.flows.WithLabelValues(flow, outcome).Inc()
	if elapsed > 0 {
		c.flowDuration.WithLabelValues(flow).Observe(elapsed.Seconds())
	}
}

// TabsOpen sets the open tab gauge.
func (c *Collector) TabsOpen(n int) {
	c.tabsOpen.Set(float64(n))
}

// ProviderCall records one provider operation.
func (c *Collector) ProviderCall(operation, result string, elapsed time.Duration) {
	c.providerCalls.WithLabelValues(operation, result).Inc()
	c.providerLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
