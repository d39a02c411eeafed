package migrate

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "ragmigrate"

// Metrics exports migration counters to Prometheus.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	documents     *prometheus.CounterVec
	batches       *prometheus.CounterVec
	failures      *prometheus.CounterVec
	submitLatency *prometheus.HistogramVec
	tables        *prometheus.CounterVec
	pending       *prometheus.GaugeVec
}

// NewMetrics creates the migration metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "documents_total",
			Help:      "Documents processed, by table and outcome (indexed, failed, dropped).",
		}, []string{"table", "outcome"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "batches_total",
			Help:      "Batch submissions, by table and outcome (indexed, failed).",
		}, []string{"table", "outcome"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "submission_failures_total",
			Help:      "Failed batch submissions, by table and reason.",
		}, []string{"table", "reason"}),
		submitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "submit_duration_seconds",
			Help:      "Time spent submitting one batch, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"table"}),
		tables: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "tables_total",
			Help:      "Tables finished, by terminal state.",
		}, []string{"state"}),
		pending: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "records_pending",
			Help:      "Records of the current table not yet read.",
		}, []string{"table"}),
	}

	for _, c := range []prometheus.Collector{m.documents, m.batches, m.failures, m.submitLatency, m.tables, m.pending} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeBatch(table string, docs int, elapsed time.Duration, reason string) {
	if m == nil {
		return
	}
	m.submitLatency.WithLabelValues(table).Observe(elapsed.Seconds())
	if reason == "" {
		m.batches.WithLabelValues(table, "indexed").Inc()
		m.documents.WithLabelValues(table, "indexed").Add(float64(docs))
		return
	}
	m.batches.WithLabelValues(table, "failed").Inc()
	m.documents.WithLabelValues(table, "failed").Add(float64(docs))
	m.failures.WithLabelValues(table, reason).Inc()
}

func (m *Metrics) observeDropped(table string) {
	if m == nil {
		return
	}
	m.documents.WithLabelValues(table, "dropped").Inc()
}

func (m *Metrics) observePending(table string, pending int) {
	if m == nil {
		return
	}
	m.pending.WithLabelValues(table).Set(float64(max(pending, 0)))
}

func (m *Metrics) observeTable(state TableState) {
	if m == nil {
		return
	}
	m.tables.WithLabelValues(string(state)).Inc()
}
