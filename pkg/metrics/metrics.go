package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/user/zte-adk/pkg/engine"
)

// Metrics holds all Prometheus metrics for the finding pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FragmentsTotal  *prometheus.CounterVec
	SynthesisTotal  *prometheus.CounterVec
	ScansTotal      *prometheus.CounterVec
	FindingsStored  prometheus.Counter
	BackendDuration *prometheus.HistogramVec
}

// NewMetrics creates the metrics and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	fragmentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zte_rule_fragments_total",
			Help: "Total number of fragments emitted by the rule engine",
		},
		[]string{"rule", "severity"},
	)

	synthesisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zte_synthesis_total",
			Help: "Synthesis calls by operation and result path (ai, text_wrapped, fallback)",
		},
		[]string{"operation", "outcome"},
	)

	scansTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "zte_scans_total",
			Help: "Scan requests processed by status",
		},
		[]string{"status"},
	)

	findingsStored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "zte_findings_stored_total",
			Help: "Findings appended to the finding store",
		},
	)

	backendDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "zte_backend_request_duration_seconds",
			Help:    "Latency of generative backend calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		},
		[]string{"operation", "status"},
	)

	reg.MustRegister(fragmentsTotal, synthesisTotal, scansTotal, findingsStored, backendDuration)

	return &Metrics{
		FragmentsTotal:  fragmentsTotal,
		SynthesisTotal:  synthesisTotal,
		ScansTotal:      scansTotal,
		FindingsStored:  findingsStored,
		BackendDuration: backendDuration,
	}
}

// RecordFragment implements engine.FragmentRecorder
func (m *Metrics) RecordFragment(ruleID string, severity engine.Severity) {
	if m == nil {
		return
	}
	m.FragmentsTotal.WithLabelValues(ruleID, string(severity)).Inc()
}

func (m *Metrics) RecordSynthesis(operation, outcome string) {
	if m == nil {
		return
	}
	m.SynthesisTotal.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordBackendCall(operation string, took time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.BackendDuration.WithLabelValues(operation, status).Observe(took.Seconds())
}

func (m *Metrics) RecordScan(status string) {
	if m == nil {
		return
	}
	m.ScansTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordStored(n int) {
	if m == nil {
		return
	}
	m.FindingsStored.Add(float64(n))
}
