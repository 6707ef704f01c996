package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	StorageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_operations_total",
			Help: "Total number of storage operations",
		},
		[]string{"operation", "status"},
	)

	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Duration of storage operations in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"operation"},
	)

	StorageBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_bytes_total",
			Help: "Total bytes written to storage",
		},
		[]string{"operation"},
	)

	CacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_lookups_total",
			Help: "Total cache lookups by result",
		},
		[]string{"result"},
	)

	CacheErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total cache operations that failed and were treated as soft failures",
		},
		[]string{"operation"},
	)

	JobsEnqueuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Total number of jobs enqueued",
		},
		[]string{"type"},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Total number of jobs processed",
		},
		[]string{"type", "status"},
	)

	JobsProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobs_processing_duration_seconds",
			Help:    "Duration of job processing in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300, 900, 1800},
		},
		[]string{"type", "stage"},
	)

	JobCancellationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_cancellations_total",
			Help: "Total cancellation requests by outcome",
		},
		[]string{"kind", "outcome"},
	)

	WorkerPoolActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_active_jobs",
			Help: "Number of jobs currently being processed by workers",
		},
	)

	WorkerPoolSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_pool_size",
			Help: "Size of the worker pool",
		},
	)

	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application information",
		},
		[]string{"version", "environment", "service"},
	)

	AppUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_up",
			Help: "Application is up and running",
		},
	)

	// Business metrics
	LedgerBytesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_ledger_bytes_total",
			Help: "Bytes charged to account counters by counter and direction",
		},
		[]string{"counter", "direction"},
	)

	LedgerRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_ledger_requests_total",
			Help: "Total authenticated requests counted against quotas",
		},
	)

	MediaCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_created_total",
			Help: "Total media entities created by workers",
		},
		[]string{"kind"},
	)

	MediaOutputBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "media_output_bytes",
			Help:    "Size of processed media outputs in bytes",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
		[]string{"kind"},
	)

	SweeperDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_sweeper_deletions_total",
			Help: "Total expired media handled by the sweeper",
		},
		[]string{"kind", "status"},
	)

	SweeperRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "media_sweeper_run_duration_seconds",
			Help:    "Duration of sweeper runs in seconds",
			Buckets: []float64{.1, .5, 1, 5, 10, 30, 60, 300},
		},
	)

	NotifierEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "media_notifier_events_total",
			Help: "Events published through the notifier by type",
		},
		[]string{"type"},
	)

	NotifierDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "media_notifier_dropped_total",
			Help: "Events dropped because a listener was not keeping up",
		},
	)

	NotifierListeners = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "media_notifier_listeners",
			Help: "Number of currently subscribed listeners",
		},
	)
)

func RecordCacheLookup(hit bool) {
	if hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()
}

func RecordCacheError(operation string) {
	CacheErrorsTotal.WithLabelValues(operation).Inc()
}

func RecordJobEnqueued(jobType string) {
	JobsEnqueuedTotal.WithLabelValues(jobType).Inc()
}

func RecordJobProcessed(jobType, status string, durationSeconds float64) {
	JobsProcessedTotal.WithLabelValues(jobType, status).Inc()
	JobsProcessingDuration.WithLabelValues(jobType, "total").Observe(durationSeconds)
}

func RecordJobStage(jobType, stage string, durationSeconds float64) {
	JobsProcessingDuration.WithLabelValues(jobType, stage).Observe(durationSeconds)
}

func RecordCancellation(kind, outcome string) {
	JobCancellationsTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordLedgerCharge records a byte movement on counter ("used" or
// "transferred"). Negative deltas are recorded as releases.
func RecordLedgerCharge(counter string, delta int64) {
	if delta < 0 {
		LedgerBytesTotal.WithLabelValues(counter, "release").Add(float64(-delta))
		return
	}
	LedgerBytesTotal.WithLabelValues(counter, "charge").Add(float64(delta))
}

func RecordLedgerRequest() {
	LedgerRequestsTotal.Inc()
}

func RecordMediaCreated(kind string, sizeBytes int64) {
	MediaCreatedTotal.WithLabelValues(kind).Inc()
	MediaOutputBytes.WithLabelValues(kind).Observe(float64(sizeBytes))
}

func RecordSweeperDeletion(kind, status string) {
	SweeperDeletionsTotal.WithLabelValues(kind, status).Inc()
}

func RecordSweeperRun(durationSeconds float64) {
	SweeperRunDuration.Observe(durationSeconds)
}

func RecordNotifierEvent(eventType string) {
	NotifierEventsTotal.WithLabelValues(eventType).Inc()
}

func RecordNotifierDrop() {
	NotifierDroppedTotal.Inc()
}

func SetNotifierListeners(n int) {
	NotifierListeners.Set(float64(n))
}

func SetAppInfo(version, environment, service string) {
	AppInfo.WithLabelValues(version, environment, service).Set(1)
	AppUp.Set(1)
}

func SetWorkerPoolSize(size int) {
	WorkerPoolSize.Set(float64(size))
}
