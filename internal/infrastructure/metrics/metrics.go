package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "deskline"
	subsystem = "queue"
)

// Queue-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// Request duration histogram
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"method", "endpoint"},
	)

	// Assignment outcomes: claimed, lost, error.
	ClaimsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "claims_total",
			Help:      "Assignment attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Attempts per attend-next call
	AttendNextAttempts = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "attend_next_attempts",
			Help:      "Claim attempts made by a single attend-next call",
			Buckets:   []float64{1, 2, 3, 4, 5, 8},
		},
	)

	// Waiting conversations per organization
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "depth",
			Help:      "Waiting conversations per organization",
		},
		[]string{"organization_id"},
	)

	LongestWait = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "longest_wait_seconds",
			Help:      "Age of the oldest waiting conversation per organization",
		},
		[]string{"organization_id"},
	)

	NearBreach = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sla_near_breach",
			Help:      "Active conversations older than the SLA threshold",
		},
		[]string{"organization_id"},
	)

	SLAAlertsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sla_alerts_total",
			Help:      "SLA alert deliveries by status",
		},
		[]string{"status"},
	)

	// Change feed
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Change events published by driver and status",
		},
		[]string{"driver", "status"},
	)

	EventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_dropped_total",
			Help:      "Change events dropped because a subscriber was slow",
		},
		[]string{"driver"},
	)

	SubscriberRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "subscriber_refreshes_total",
			Help:      "Queue refreshes by trigger and status",
		},
		[]string{"trigger", "status"},
	)

	// Dispatcher rounds
	DispatchRoundsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "dispatch_rounds_total",
			Help:      "Automatic dispatch rounds by status",
		},
		[]string{"status"},
	)

	// DB query duration
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "db_query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
		[]string{"query_type"},
	)
)

// RecordRequest records an HTTP request
func RecordRequest(method, endpoint, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	RequestDuration.WithLabelValues(method, endpoint).Observe(durationSec)
}

// RecordClaim records the outcome of an assignment operation
func RecordClaim(operation, outcome string) {
	ClaimsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordAttendNext records how many claims one attend-next call needed
func RecordAttendNext(attempts int) {
	AttendNextAttempts.Observe(float64(attempts))
}

// SetQueueStats publishes the headline numbers of an SLA report
func SetQueueStats(orgID string, depth int, longestWaitSec float64, nearBreach int) {
	QueueDepth.WithLabelValues(orgID).Set(float64(depth))
	LongestWait.WithLabelValues(orgID).Set(longestWaitSec)
	NearBreach.WithLabelValues(orgID).Set(float64(nearBreach))
}

func RecordSLAAlert(status string) {
	SLAAlertsTotal.WithLabelValues(status).Inc()
}

func RecordEventPublished(driver, status string) {
	EventsPublished.WithLabelValues(driver, status).Inc()
}

func RecordEventDropped(driver string) {
	EventsDropped.WithLabelValues(driver).Inc()
}

func RecordRefresh(trigger, status string) {
	SubscriberRefreshes.WithLabelValues(trigger, status).Inc()
}

func RecordDispatchRound(status string) {
	DispatchRoundsTotal.WithLabelValues(status).Inc()
}

// RecordDBQuery records a database query
func RecordDBQuery(queryType string, durationSec float64) {
	DBQueryDuration.WithLabelValues(queryType).Observe(durationSec)
}

// AssignmentRecorder adapts the package metrics to the assignment
// coordinator's recorder.
type AssignmentRecorder struct{}

func (AssignmentRecorder) RecordClaim(operation, outcome string) {
	RecordClaim(operation, outcome)
}

func (AssignmentRecorder) RecordAttendNext(tries int) {
	RecordAttendNext(tries)
}

// SLAGauges adapts the package metrics to the SLA alerter.
type SLAGauges struct{}

func (SLAGauges) SetQueueStats(orgID string, depth int, longestWaitSec float64, nearBreach int) {
	SetQueueStats(orgID, depth, longestWaitSec, nearBreach)
}

func (SLAGauges) RecordSLAAlert(status string) {
	RecordSLAAlert(status)
}

// RefreshRecorder adapts the package metrics to realtime subscribers.
type RefreshRecorder struct{}

func (RefreshRecorder) RecordRefresh(trigger, status string) {
	RecordRefresh(trigger, status)
}
