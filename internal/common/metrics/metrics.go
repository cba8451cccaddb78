// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// BookingCounterDrift is the last observed redis minus hubspot difference per exam.
	BookingCounterDrift = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "booking_counter_drift",
			Help: "Difference between the Redis booking counter and HubSpot total_bookings",
		},
		[]string{"mock_exam_id"},
	)

	HubSpotRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hubspot_requests_total",
			Help: "HubSpot API requests by operation and response status",
		},
		[]string{"operation", "status"},
	)

	EligibilityCacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "credits_eligibility_cache_writes_total",
			Help: "Eligibility cache writes by result",
		},
		[]string{"result"},
	)

	BookingsExported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bookings_exported_rows_total",
			Help: "Booking rows written to CSV exports",
		},
	)
)
