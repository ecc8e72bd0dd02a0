package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Import row outcomes.
const (
	OutcomeImported  = "imported"
	OutcomeDuplicate = "duplicate"
	OutcomeUpdated   = "updated"
	OutcomeInvalid   = "invalid"
)

// ImportMetrics records contact import batches.
type ImportMetrics struct {
	duration *prometheus.HistogramVec
	rows     *prometheus.CounterVec
	failure  *prometheus.CounterVec
}

// NewImportMetrics registers the import metrics on the provided registerer.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contacts_import_duration_seconds",
		Help:    "Duration of contact import batches in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"source"})
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_import_rows_total",
		Help: "Imported candidate rows by outcome.",
	}, []string{"source", "outcome"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "contacts_import_failure_total",
		Help: "Import batches rejected before or during persistence.",
	}, []string{"source"})
	reg.MustRegister(duration, rows, failure)
	return &ImportMetrics{
		duration: duration,
		rows:     rows,
		failure:  failure,
	}
}

// ObserveBatch records the duration and per-outcome row counts of a completed batch.
func (m *ImportMetrics) ObserveBatch(source string, duration time.Duration, imported, duplicates, updated, invalid int) {
	if m == nil || m.duration == nil {
		return
	}
	source = normalizeLabel(source)
	m.duration.WithLabelValues(source).Observe(duration.Seconds())
	m.rows.WithLabelValues(source, OutcomeImported).Add(float64(imported))
	m.rows.WithLabelValues(source, OutcomeDuplicate).Add(float64(duplicates))
	m.rows.WithLabelValues(source, OutcomeUpdated).Add(float64(updated))
	m.rows.WithLabelValues(source, OutcomeInvalid).Add(float64(invalid))
}

// IncFailure increments the failure counter for the named source.
func (m *ImportMetrics) IncFailure(source string) {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.WithLabelValues(normalizeLabel(source)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
