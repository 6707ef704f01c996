package metrics

import (
	"time"
)

// PrometheusCollector implements the job-queue MetricsCollector interface.
// Job outcomes are labelled with the job type so image and video pools can
// be told apart.
type PrometheusCollector struct{}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{}
}

func (c *PrometheusCollector) JobStarted(jobType, queue string) {
	WorkerPoolActiveJobs.Inc()
}

func (c *PrometheusCollector) JobCompleted(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	RecordJobProcessed(jobType, "success", duration.Seconds())
}

// JobFailed covers both failed and canceled jobs; the handlers record the
// distinction in JobCancellationsTotal.
func (c *PrometheusCollector) JobFailed(jobType, queue string, duration time.Duration) {
	WorkerPoolActiveJobs.Dec()
	RecordJobProcessed(jobType, "error", duration.Seconds())
}

func (c *PrometheusCollector) JobRetrying(jobType, queue string, attempt int) {
	JobsProcessedTotal.WithLabelValues(jobType, "retry").Inc()
}
