package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "met_etl"

// Line error stages.
const (
	StageParse   = "parse"
	StageConvert = "convert"
)

// File outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the ETL pipeline.
type Metrics struct {
	LinesRead       prometheus.Counter
	RecordsWritten  prometheus.Counter
	RecordsFiltered prometheus.Counter
	LineErrors      *prometheus.CounterVec // labels: stage={parse,convert}
	FilesProcessed  *prometheus.CounterVec // labels: outcome={success,failed}
	PipelineRunning prometheus.Gauge

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Format inference cache.
	FormatCache *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.LinesRead,
		m.RecordsWritten,
		m.RecordsFiltered,
		m.LineErrors,
		m.FilesProcessed,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.FormatCache,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_read_total",
			Help:      "Total data lines read from input files.",
		}),
		RecordsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_written_total",
			Help:      "Total records handed to the sinks.",
		}),
		RecordsFiltered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_filtered_total",
			Help:      "Total records dropped by the station filter.",
		}),
		LineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "line_errors_total",
			Help:      "Malformed data lines by stage.",
		}, []string{"stage"}),
		FilesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Input files processed by outcome.",
		}, []string{"outcome"}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a file is being processed, 0 otherwise.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of lines per batch extracted from an input file.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}),
		FormatCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "format_cache_total",
			Help:      "Header format cache lookups by result.",
		}, []string{"result"}),
	}
}
