package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_requests_total",
			Help: "Total number of HTTP requests per route",
		},
		[]string{"route"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ebillmanager_request_duration_seconds",
			Help:    "Request duration in seconds per route",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_request_errors_total",
			Help: "Total number of error responses per route and error code",
		},
		[]string{"route", "code"},
	)
)

var (
	RateResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_rate_resolutions_total",
			Help: "Effective rate resolutions by provenance",
		},
		[]string{"provenance"},
	)

	RateMutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_rate_mutations_total",
			Help: "Customer rate and zip catalog mutations by operation and result",
		},
		[]string{"op", "result"},
	)

	ChargesViewCustomers = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ebillmanager_charges_view_customers",
			Help:    "Number of customers aggregated per charges view build",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	AggregationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_aggregation_failures_total",
			Help: "Per-customer aggregation failures by source",
		},
		[]string{"source"},
	)

	OutstandingAmount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_outstanding_amount",
			Help: "Sum of bill amounts by status as of the last digest run",
		},
		[]string{"status"},
	)

	DocumentsRenderedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_documents_rendered_total",
			Help: "Invoices and statements rendered by kind and format",
		},
		[]string{"kind", "format"},
	)

	BulkOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_bulk_operations_total",
			Help: "Upstream bulk operations by operation and result",
		},
		[]string{"op", "result"},
	)
)

var (
	DBPoolOpenConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_db_pool_open_conns",
			Help: "Open connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_db_pool_idle_conns",
			Help: "Idle connections in the DB pool per driver",
		},
		[]string{"driver"},
	)

	DBPoolInUseConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_db_pool_in_use_conns",
			Help: "Currently in-use connections per driver",
		},
		[]string{"driver"},
	)

	DBPoolWaitCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_db_pool_wait_count",
			Help: "Total number of connections waited for per driver",
		},
		[]string{"driver"},
	)
)

func UpdateDBPoolMetrics(driver string, open, idle, inUse int, waitCount int64) {
	DBPoolOpenConns.WithLabelValues(driver).Set(float64(open))
	DBPoolIdleConns.WithLabelValues(driver).Set(float64(idle))
	DBPoolInUseConns.WithLabelValues(driver).Set(float64(inUse))
	DBPoolWaitCount.WithLabelValues(driver).Set(float64(waitCount))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ebillmanager_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)

	LockReleaseFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ebillmanager_job_lock_release_failures_total",
			Help: "Advisory lock releases that errored or found the lock not held",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
