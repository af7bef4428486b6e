package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for an export run.
type Metrics struct {
	Registry       *prometheus.Registry
	PagesFetched   prometheus.Counter
	RowsWritten    prometheus.Counter
	RecordsSkipped prometheus.Counter
	FetchErrors    *prometheus.CounterVec
	FetchDuration  prometheus.Histogram
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "export_pages_fetched_total",
			Help: "Total pages fetched from the remote collection.",
		},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "export_rows_written_total",
			Help: "Total rows handed to the output writer.",
		},
	)
	skipped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "export_records_skipped_total",
			Help: "Total records skipped because a field could not be extracted.",
		},
	)
	fetchErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "export_fetch_errors_total",
			Help: "Total page fetch errors by type.",
		},
		[]string{"error_type"},
	)
	fetchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "export_fetch_duration_seconds",
			Help:    "Latency of page fetches.",
			Buckets: prometheus.DefBuckets,
		},
	)

	registry.MustRegister(pages, rows, skipped, fetchErrors, fetchDuration)

	return &Metrics{
		Registry:       registry,
		PagesFetched:   pages,
		RowsWritten:    rows,
		RecordsSkipped: skipped,
		FetchErrors:    fetchErrors,
		FetchDuration:  fetchDuration,
	}
}

// ObserveFetch records a page fetch duration.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// IncPages increments the pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesFetched.Inc()
}

// AddRows adds n written rows.
func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsWritten.Add(float64(n))
}

// AddSkipped adds n skipped records.
func (m *Metrics) AddSkipped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsSkipped.Add(float64(n))
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(errorType).Inc()
}
