// Package metrics holds the Prometheus collectors for the agent and collector.
// Each instance owns its own registry so several can coexist in one process.
package metrics

import (
	"net/http"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Agent holds the agent-side metrics. A nil *Agent is valid and records nothing.
type Agent struct {
	registry *prometheus.Registry

	ScansTotal       *prometheus.CounterVec
	ScanDuration     prometheus.Histogram
	SkippedTicks     prometheus.Counter
	FindingsMatched  *prometheus.CounterVec
	TransmitsTotal   prometheus.Counter
	TransmitFailures prometheus.Counter
	AlertFailures    prometheus.Counter
}

func NewAgent() *Agent {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Agent{
		registry: reg,
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotewatch_agent_scans_total",
			Help: "Total number of completed scans by verdict status",
		}, []string{"status"}),
		ScanDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "remotewatch_agent_scan_duration_seconds",
			Help:    "Wall time of a full scan",
			Buckets: prometheus.DefBuckets,
		}),
		SkippedTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_agent_skipped_ticks_total",
			Help: "Scheduler ticks skipped because a scan was still running",
		}),
		FindingsMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "remotewatch_agent_findings_matched_total",
			Help: "Matched findings by source and severity",
		}, []string{"source", "severity"}),
		TransmitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_agent_transmits_total",
			Help: "Reports delivered to the collector",
		}),
		TransmitFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_agent_transmit_failures_total",
			Help: "Reports dropped because delivery failed",
		}),
		AlertFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "remotewatch_agent_alert_failures_total",
			Help: "Alert sink deliveries that returned an error",
		}),
	}
}

// ObserveScan records one completed scan.
func (m *Agent) ObserveScan(v models.ScanVerdict, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(string(models.StatusFor(v))).Inc()
	m.ScanDuration.Observe(elapsed.Seconds())
	for _, f := range v.MatchedFindings() {
		m.FindingsMatched.WithLabelValues(string(f.Source), f.Severity.String()).Inc()
	}
}

func (m *Agent) IncSkippedTick() {
	if m != nil {
		m.SkippedTicks.Inc()
	}
}

func (m *Agent) IncTransmit(ok bool) {
	if m == nil {
		return
	}
	if ok {
		m.TransmitsTotal.Inc()
	} else {
		m.TransmitFailures.Inc()
	}
}

func (m *Agent) IncAlertFailure() {
	if m != nil {
		m.AlertFailures.Inc()
	}
}

func (m *Agent) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves this instance's registry.
func (m *Agent) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
