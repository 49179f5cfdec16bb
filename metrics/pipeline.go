// Package metrics provides Prometheus metrics for the detection pipeline
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels.
const (
	StatusSuccess         = "success"
	StatusValidationError = "validation_error"
	StatusParseError      = "parse_error"
	StatusStorageError    = "storage_error"
	StatusNotFound        = "not_found"
	StatusError           = "error"
)

// PipelineMetrics contains Prometheus metrics for saving and reading detections
type PipelineMetrics struct {
	// save pipeline
	submissionsTotal   *prometheus.CounterVec
	saveDuration       prometheus.Histogram
	detailRowsPerSave  prometheus.Histogram
	sectionSourceTotal *prometheus.CounterVec

	// read side
	reportsTotal      *prometheus.CounterVec
	reportCacheTotal  *prometheus.CounterVec
	deletionsTotal    *prometheus.CounterVec
	listRequestsTotal *prometheus.CounterVec

	// capture archiving
	archiveJobsTotal   *prometheus.CounterVec
	archiveDuration    prometheus.Histogram
	archiveQueueLength prometheus.Gauge

	collectors []prometheus.Collector
}

// NewPipelineMetrics creates and registers new pipeline metrics
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *PipelineMetrics) initMetrics() {
	m.submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_submissions_total",
			Help: "Total number of detection submissions by outcome",
		},
		[]string{"status"},
	)
	m.saveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "acnesense_save_duration_seconds",
		Help:    "Time taken to persist a detection submission",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
	})
	m.detailRowsPerSave = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "acnesense_detail_rows_per_save",
		Help:    "Number of detail rows written per submission",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
	m.sectionSourceTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_recommendation_source_total",
			Help: "Recommendation variant used by saved submissions",
		},
		[]string{"source"}, // structured, text
	)

	m.reportsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_reports_total",
			Help: "Total number of report requests by outcome",
		},
		[]string{"status"},
	)
	m.reportCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_report_cache_total",
			Help: "Report cache lookups",
		},
		[]string{"result"}, // hit, miss
	)
	m.deletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_history_deletions_total",
			Help: "Total number of history deletions by outcome",
		},
		[]string{"status"},
	)
	m.listRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_history_list_total",
			Help: "Total number of history list requests by sort order",
		},
		[]string{"sort"},
	)

	m.archiveJobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acnesense_archive_jobs_total",
			Help: "Capture archive jobs by outcome",
		},
		[]string{"status"}, // success, error, dropped
	)
	m.archiveDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "acnesense_archive_duration_seconds",
		Help:    "Time taken to archive a capture and build its thumbnail",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})
	m.archiveQueueLength = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "acnesense_archive_queue_length",
		Help: "Capture archive jobs waiting or running",
	})

	m.collectors = []prometheus.Collector{
		m.submissionsTotal,
		m.saveDuration,
		m.detailRowsPerSave,
		m.sectionSourceTotal,
		m.reportsTotal,
		m.reportCacheTotal,
		m.deletionsTotal,
		m.listRequestsTotal,
		m.archiveJobsTotal,
		m.archiveDuration,
		m.archiveQueueLength,
	}
}

// Describe implements the Collector interface
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordSubmission records the outcome of a save. detailRows and source are
// only observed for successful saves.
func (m *PipelineMetrics) RecordSubmission(status string, duration time.Duration, detailRows int, source string) {
	m.submissionsTotal.WithLabelValues(status).Inc()
	if status != StatusSuccess {
		return
	}
	m.saveDuration.Observe(duration.Seconds())
	m.detailRowsPerSave.Observe(float64(detailRows))
	m.sectionSourceTotal.WithLabelValues(source).Inc()
}

func (m *PipelineMetrics) RecordReport(status string) {
	m.reportsTotal.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) RecordReportCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCacheTotal.WithLabelValues(result).Inc()
}

func (m *PipelineMetrics) RecordDeletion(status string) {
	m.deletionsTotal.WithLabelValues(status).Inc()
}

func (m *PipelineMetrics) RecordList(sortOrder string) {
	m.listRequestsTotal.WithLabelValues(sortOrder).Inc()
}

func (m *PipelineMetrics) RecordArchiveJob(status string, duration time.Duration) {
	m.archiveJobsTotal.WithLabelValues(status).Inc()
	if duration > 0 {
		m.archiveDuration.Observe(duration.Seconds())
	}
}

func (m *PipelineMetrics) SetArchiveQueueLength(n int) {
	m.archiveQueueLength.Set(float64(n))
}
