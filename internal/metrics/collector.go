package metrics

import (
	"net/http"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the collector-side metrics. A nil *Collector records nothing.
type Collector struct {
	registry *prometheus.Registry

	ReportsIngested   *prometheus.CounterVec
	ReportsInvalid    prometheus.Counter
	IngestFailures    prometheus.Counter
	BroadcastDropped  prometheus.Counter
	NatsPublishErrors prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		ReportsIngested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotewatch_collector_reports_ingested_total",
			Help: "Reports accepted by status and severity",
		}, []string{"status", "severity"}),
		ReportsInvalid: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_collector_reports_invalid_total",
			Help: "Reports rejected by validation",
		}),
		IngestFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_collector_ingest_failures_total",
			Help: "Reports that could not be persisted",
		}),
		BroadcastDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_collector_broadcast_dropped_total",
			Help: "Live-stream messages dropped for slow subscribers",
		}),
		NatsPublishErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_collector_nats_publish_errors_total",
			Help: "Failed event bus publishes",
		}),
	}
}

// RegisterPresence exposes live client counts computed on every scrape.
func (m *Collector) RegisterPresence(total, online func() int) {
	if m == nil {
		return
	}
	factory := promauto.With(m.registry)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "remotewatch_collector_clients",
		Help: "Known endpoints",
	}, func() float64 { return float64(total()) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "remotewatch_collector_clients_online",
		Help: "Endpoints seen within the presence window",
	}, func() float64 { return float64(online()) })
}

func (m *Collector) IncIngested(r models.ClientReport) {
	if m != nil {
		m.ReportsIngested.WithLabelValues(string(r.Status), r.Severity.String()).Inc()
	}
}

func (m *Collector) IncInvalid() {
	if m != nil {
		m.ReportsInvalid.Inc()
	}
}

func (m *Collector) IncIngestFailure() {
	if m != nil {
		m.IngestFailures.Inc()
	}
}

func (m *Collector) AddBroadcastDropped(n int) {
	if m != nil && n > 0 {
		m.BroadcastDropped.Add(float64(n))
	}
}

func (m *Collector) IncNatsPublishError() {
	if m != nil {
		m.NatsPublishErrors.Inc()
	}
}

func (m *Collector) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
