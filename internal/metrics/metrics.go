package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "shortlink"

// Metrics groups the service collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry *prometheus.Registry

	shortens       *prometheus.CounterVec
	resolves       *prometheus.CounterVec
	cacheErrors    *prometheus.CounterVec
	clickUpdates   *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		shortens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shorten_total",
			Help:      "Shorten requests by outcome.",
		}, []string{"result"}),
		resolves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_total",
			Help:      "Successful resolutions by the layer that answered.",
		}, []string{"source"}),
		cacheErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_errors_total",
			Help:      "Cache operations that failed and fell back to the store.",
		}, []string{"op"}),
		clickUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "click_updates_total",
			Help:      "Asynchronous click counter updates by outcome.",
		}, []string{"result"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.shortens,
		m.resolves,
		m.cacheErrors,
		m.clickUpdates,
		m.requestLatency,
	)
	return m
}

func (m *Metrics) Shorten(result string) {
	if m == nil {
		return
	}
	m.shortens.WithLabelValues(result).Inc()
}

func (m *Metrics) Resolve(source string) {
	if m == nil {
		return
	}
	m.resolves.WithLabelValues(source).Inc()
}

func (m *Metrics) CacheError(op string) {
	if m == nil {
		return
	}
	m.cacheErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ClickUpdate(result string) {
	if m == nil {
		return
	}
	m.clickUpdates.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(route, method, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestLatency.WithLabelValues(route, method, status).Observe(seconds)
}
