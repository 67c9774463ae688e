package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	workflowCommandsTotal *prometheus.CounterVec
	lockWaitSeconds       *prometheus.HistogramVec

	notificationsPublishedTotal *prometheus.CounterVec
	eventPublishFailuresTotal   *prometheus.CounterVec

	attachmentUploadsTotal   *prometheus.CounterVec
	attachmentRejectedTotal  *prometheus.CounterVec
	attachmentUploadDuration prometheus.Histogram

	directoryCacheTotal *prometheus.CounterVec
	reminderRunsTotal   *prometheus.CounterVec

	streamClientsActive prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used across the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actionlog_api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		workflowCommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_workflow_commands_total",
			Help: "Workflow commands by command name and outcome.",
		}, []string{"command", "outcome"})

		lockWaitSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "actionlog_lock_wait_seconds",
			Help:    "Time spent waiting for the per-log lock.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"command"})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_notifications_published_total",
			Help: "Notifications recorded by type.",
		}, []string{"type"})

		eventPublishFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_event_publish_failures_total",
			Help: "Workflow events that could not be published, by transport.",
		}, []string{"transport"})

		attachmentUploadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_attachment_uploads_total",
			Help: "Stored attachments by normalised MIME type.",
		}, []string{"mime"})

		attachmentRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_attachment_rejected_total",
			Help: "Rejected attachment uploads by reason.",
		}, []string{"reason"})

		attachmentUploadDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "actionlog_attachment_upload_seconds",
			Help:    "Attachment processing latency.",
			Buckets: prometheus.DefBuckets,
		})

		directoryCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_directory_cache_total",
			Help: "Directory cache lookups by result.",
		}, []string{"result"})

		reminderRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "actionlog_due_date_reminder_runs_total",
			Help: "Due date reminder job runs by outcome.",
		}, []string{"outcome"})

		streamClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "actionlog_event_stream_clients",
			Help: "Connected event stream clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			workflowCommandsTotal, lockWaitSeconds,
			notificationsPublishedTotal, eventPublishFailuresTotal,
			attachmentUploadsTotal, attachmentRejectedTotal, attachmentUploadDuration,
			directoryCacheTotal, reminderRunsTotal,
			streamClientsActive,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// WorkflowCommands counts engine commands by outcome.
func WorkflowCommands() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowCommandsTotal
}

// LockWait observes lock acquisition latency.
func LockWait() *prometheus.HistogramVec {
	RegisterMetrics()
	return lockWaitSeconds
}

// NotificationsPublishedTotal counts notification records.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// EventPublishFailures counts failed event publications.
func EventPublishFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return eventPublishFailuresTotal
}

// AttachmentUploads counts stored attachments.
func AttachmentUploads() *prometheus.CounterVec {
	RegisterMetrics()
	return attachmentUploadsTotal
}

// AttachmentRejected counts rejected uploads.
func AttachmentRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return attachmentRejectedTotal
}

// AttachmentLatency observes upload processing time.
func AttachmentLatency() prometheus.Histogram {
	RegisterMetrics()
	return attachmentUploadDuration
}

// DirectoryCache counts cache hits and misses.
func DirectoryCache() *prometheus.CounterVec {
	RegisterMetrics()
	return directoryCacheTotal
}

// ReminderRuns counts due date reminder runs.
func ReminderRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return reminderRunsTotal
}

// StreamClients tracks open event stream connections.
func StreamClients() prometheus.Gauge {
	RegisterMetrics()
	return streamClientsActive
}
