// Package metrics counts run outcomes in a Prometheus registry and writes
// them as a node_exporter textfile when the run ends. A nil *Metrics is a
// valid no-op recorder.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "wavecut"

// Metrics holds the run collectors.
type Metrics struct {
	registry *prometheus.Registry

	events      *prometheus.CounterVec
	files       *prometheus.CounterVec
	traces      prometheus.Counter
	purgeErrors prometheus.Counter
	stageDur    *prometheus.HistogramVec
	lastRun     prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.events = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Catalog events processed, by outcome (saved, failed, skipped)",
	}, []string{"outcome"})
	m.files = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "staged_files_total",
		Help:      "Staged archive files scanned, by status (parsed, unreadable)",
	}, []string{"status"})
	m.traces = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "traces_written_total",
		Help:      "Trimmed traces written into event artifacts",
	})
	m.purgeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "purge_errors_total",
		Help:      "Staging entries that could not be removed",
	})
	m.stageDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "stage_duration_seconds",
		Help:      "Time spent per event stage (fetch, select, write, purge)",
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
	}, []string{"stage"})
	m.lastRun = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last run finished",
	})

	m.registry.MustRegister(m.events, m.files, m.traces, m.purgeErrors, m.stageDur, m.lastRun)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Event counts one event outcome.
func (m *Metrics) Event(outcome string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(outcome).Inc()
}

// File counts one scanned staging file.
func (m *Metrics) File(status string) {
	if m == nil {
		return
	}
	m.files.WithLabelValues(status).Inc()
}

// Traces adds n written traces.
func (m *Metrics) Traces(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.traces.Add(float64(n))
}

// PurgeErrors adds n failed removals.
func (m *Metrics) PurgeErrors(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.purgeErrors.Add(float64(n))
}

// Stage observes how long a stage took.
func (m *Metrics) Stage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDur.WithLabelValues(stage).Observe(d.Seconds())
}

// Finish stamps the run end time.
func (m *Metrics) Finish(at time.Time) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
