package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/invoice-extractor/internal/core/domain"
)

// PipelineMetrics observes file and batch processing. It satisfies ports.FileObserver.
type PipelineMetrics struct {
	service string

	filesInFlight   prometheus.Gauge
	fileTotal       *prometheus.CounterVec
	fileDuration    *prometheus.HistogramVec
	cleanupFailures prometheus.Counter
	batchSize       prometheus.Histogram
	batchTotal      *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	queueLag        prometheus.Histogram
}

func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	constLabels := prometheus.Labels{"service": service}

	filesInFlight := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace:   namespace,
		Subsystem:   "pipeline",
		Name:        "files_in_flight",
		Help:        "Number of files currently being processed.",
		ConstLabels: constLabels,
	})
	fileTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "files_total",
			Help:        "Processed files by status and failure kind.",
			ConstLabels: constLabels,
		},
		[]string{"status", "failure_kind"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "pipeline",
			Name:        "file_duration_seconds",
			Help:        "Per-file processing duration in seconds.",
			Buckets:     []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	cleanupFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   namespace,
		Subsystem:   "pipeline",
		Name:        "scratch_cleanup_failures_total",
		Help:        "Scratch copies that could not be removed.",
		ConstLabels: constLabels,
	})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "pipeline",
		Name:        "batch_files",
		Help:        "Distribution of files per batch.",
		Buckets:     []float64{1, 2, 5, 10, 20, 50, 100},
		ConstLabels: constLabels,
	})
	batchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "batch_process_total",
			Help:        "Queued batches processed by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "batch_process_duration_seconds",
			Help:        "Queued batch processing duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	queueLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace:   namespace,
		Subsystem:   "worker",
		Name:        "queue_lag_seconds",
		Help:        "Delay between batch submission and processing start.",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	})

	registry.MustRegister(filesInFlight, fileTotal, fileDuration, cleanupFailures, batchSize, batchTotal, batchDuration, queueLag)

	return &PipelineMetrics{
		service:         service,
		filesInFlight:   filesInFlight,
		fileTotal:       fileTotal,
		fileDuration:    fileDuration,
		cleanupFailures: cleanupFailures,
		batchSize:       batchSize,
		batchTotal:      batchTotal,
		batchDuration:   batchDuration,
		queueLag:        queueLag,
	}
}

func (m *PipelineMetrics) BatchStarted(size int) {
	m.batchSize.Observe(float64(size))
}

func (m *PipelineMetrics) FileStarted() {
	m.filesInFlight.Inc()
}

func (m *PipelineMetrics) FileFinished(outcome domain.FileOutcome, duration time.Duration) {
	m.filesInFlight.Dec()
	status := string(outcome.Status)
	m.fileTotal.WithLabelValues(status, string(outcome.FailureKind)).Inc()
	m.fileDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ScratchCleanupFailed() {
	m.cleanupFailures.Inc()
}

// FinishBatch records one queued batch handled by the worker.
func (m *PipelineMetrics) FinishBatch(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.batchTotal.WithLabelValues(status).Inc()
	m.batchDuration.WithLabelValues(status).Observe(duration.Seconds())
}

func (m *PipelineMetrics) ObserveQueueLag(lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.Observe(lag.Seconds())
}
