package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors exported on /metrics.
type Metrics struct {
	registry      *prometheus.Registry
	ingestTotal   *prometheus.CounterVec
	ingestLatency *prometheus.HistogramVec
	liveClients   prometheus.Gauge
}

// New registers collectors on a private registry, plus Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ingestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "leadtrack_ingest_requests_total",
				Help: "Ingestion attempts by outcome (success or error code).",
			},
			[]string{"outcome"},
		),
		ingestLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "leadtrack_ingest_duration_seconds",
				Help:    "Ingestion latency by outcome.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		liveClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "leadtrack_live_subscribers",
			Help: "Open live feed websocket connections.",
		}),
	}

	reg.MustRegister(
		m.ingestTotal,
		m.ingestLatency,
		m.liveClients,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveIngest records one ingestion. Safe on a nil receiver.
func (m *Metrics) ObserveIngest(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ingestTotal.WithLabelValues(outcome).Inc()
	m.ingestLatency.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// LiveClientConnected and LiveClientDisconnected track websocket clients.
func (m *Metrics) LiveClientConnected() {
	if m != nil {
		m.liveClients.Inc()
	}
}

func (m *Metrics) LiveClientDisconnected() {
	if m != nil {
		m.liveClients.Dec()
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
