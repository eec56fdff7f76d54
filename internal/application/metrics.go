package application

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ericfisherdev/elvagent/internal/domain/model"
)

const metricsNamespace = "elvagent"

// Metrics holds the agent's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastCycle     prometheus.Gauge
	events        *prometheus.CounterVec
	results       *prometheus.CounterVec
	ledgerWrites  *prometheus.CounterVec
}

// NewMetrics registers the agent's collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "cycles_total",
			Help:      "Completed agent cycles by outcome.",
		}, []string{"outcome"}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "cycle_duration_seconds",
			Help:      "Wall-clock duration of agent cycles.",
			Buckets:   []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastCycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time the most recent cycle finished.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "events_total",
			Help:      "Remediation events emitted by triage.",
		}, []string{"kind"}),
		results: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "worker_results_total",
			Help:      "Worker results by event kind, action and success.",
		}, []string{"kind", "action", "success"}),
		ledgerWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "ledger_writes_total",
			Help:      "Idempotency ledger writes by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeCycle(r CycleReport) {
	if m == nil {
		return
	}
	outcome := "ok"
	if r.Err != nil {
		outcome = "error"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(r.Duration().Seconds())
	m.lastCycle.Set(float64(r.FinishedAt.Unix()))
}

func (m *Metrics) observeEvent(kind model.EventKind) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) observeResult(r model.WorkerResult) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(string(r.Kind), string(r.Action), strconv.FormatBool(r.Success)).Inc()
}

func (m *Metrics) observeLedgerWrite(err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ledgerWrites.WithLabelValues(outcome).Inc()
}
