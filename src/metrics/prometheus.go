// Package metrics exports routing, cache and provider metrics in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maecare/airouter/src/models"
)

// Exporter owns a private registry. All record methods are safe on a nil
// receiver so components can run without metrics.
type Exporter struct {
	registry *prometheus.Registry

	routingDecisions *prometheus.CounterVec
	fallbacks        *prometheus.CounterVec
	flagOverrides    *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	cacheSwept       prometheus.Counter
	providerCalls    *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	groupRequests    *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for provider latency histograms (in seconds)
	LatencyBuckets []float64
}

func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{
		registry: registry,
		routingDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_routing_decisions_total",
			Help: "Routing decisions by final provider and query type.",
		}, []string{"provider", "query_type"}),
		fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_fallbacks_total",
			Help: "Fallback substitutions by original and substitute provider.",
		}, []string{"from", "to"}),
		flagOverrides: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_flag_overrides_total",
			Help: "Classified providers replaced because the user's flags do not enable them.",
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_cache_lookups_total",
			Help: "Response cache lookups by provider and result.",
		}, []string{"provider", "result"}),
		cacheSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "airouter_cache_swept_entries_total",
			Help: "Expired cache rows removed by the sweeper.",
		}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_provider_requests_total",
			Help: "Provider calls by provider and status.",
		}, []string{"provider", "status"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airouter_provider_latency_seconds",
			Help:    "Provider call latency.",
			Buckets: cfg.LatencyBuckets,
		}, []string{"provider"}),
		groupRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "airouter_ab_group_requests_total",
			Help: "Chat requests from users with enhanced analytics, by A/B group and query type.",
		}, []string{"ab_group", "query_type"}),
	}

	registry.MustRegister(
		e.routingDecisions,
		e.fallbacks,
		e.flagOverrides,
		e.cacheLookups,
		e.cacheSwept,
		e.providerCalls,
		e.providerLatency,
		e.groupRequests,
	)

	return e
}

func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

func (e *Exporter) RecordRouting(d *models.RoutingDecision) {
	if e == nil || d == nil {
		return
	}
	e.routingDecisions.WithLabelValues(string(d.Provider), string(d.QueryType)).Inc()
}

func (e *Exporter) RecordFallback(from, to models.Provider) {
	if e == nil {
		return
	}
	target := string(to)
	if target == "" {
		target = "none"
	}
	e.fallbacks.WithLabelValues(string(from), target).Inc()
}

func (e *Exporter) RecordFlagOverride(p models.Provider) {
	if e == nil {
		return
	}
	e.flagOverrides.WithLabelValues(string(p)).Inc()
}

func (e *Exporter) RecordCacheLookup(p models.Provider, hit bool) {
	if e == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	e.cacheLookups.WithLabelValues(string(p), result).Inc()
}

func (e *Exporter) RecordSwept(n int64) {
	if e == nil || n <= 0 {
		return
	}
	e.cacheSwept.Add(float64(n))
}

func (e *Exporter) RecordProviderCall(p models.Provider, err error, seconds float64) {
	if e == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	e.providerCalls.WithLabelValues(string(p), status).Inc()
	e.providerLatency.WithLabelValues(string(p)).Observe(seconds)
}

func (e *Exporter) RecordGroupRequest(group models.ABGroup, qt models.QueryType) {
	if e == nil {
		return
	}
	e.groupRequests.WithLabelValues(string(group), string(qt)).Inc()
}
