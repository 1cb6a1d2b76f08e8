// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package metrics holds the Prometheus collectors for the recommendation core
// and a rolling per-operation timing window used by the debug endpoint.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/artswap/internal/models"
)

var (
	// Store metrics
	StoreQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artswap_store_query_duration_seconds",
			Help:    "Duration of interaction store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"driver", "operation"},
	)

	StoreQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_store_query_errors_total",
			Help: "Total number of interaction store query errors",
		},
		[]string{"driver", "operation", "error_type"},
	)

	// Core operation metrics
	OperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artswap_operation_duration_seconds",
			Help:    "Duration of core operations in seconds",
			Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	OperationOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_operation_outcomes_total",
			Help: "Core operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Abuse gate metrics
	GateRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_gate_rejections_total",
			Help: "Uploads and reports rejected by the abuse gate",
		},
		[]string{"action", "reason"},
	)

	GateAccepted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_gate_accepted_total",
			Help: "Uploads and reports admitted by the abuse gate",
		},
		[]string{"action"},
	)

	UsersUploadBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artswap_users_upload_blocked_total",
			Help: "Users moved to upload_blocked by report escalation",
		},
	)

	// Collaborative filter metrics
	CollabRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "artswap_collab_rebuild_duration_seconds",
			Help:    "Duration of collaborative filter rebuilds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	CollabRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_collab_rebuilds_total",
			Help: "Collaborative filter rebuild attempts by result",
		},
		[]string{"result"}, // "ok", "error", "skipped"
	)

	CollabMatrixSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artswap_collab_matrix_size",
			Help: "Dimensions of the current rating matrix",
		},
		[]string{"dimension"}, // "users", "items"
	)

	CollabSnapshotAge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artswap_collab_snapshot_built_timestamp_seconds",
			Help: "Unix time of the current snapshot build",
		},
	)

	// Recommendation queue metrics
	QueueRefills = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_queue_refills_total",
			Help: "Recommendation queue refills by source",
		},
		[]string{"source"},
	)

	QueueServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_recommendations_served_total",
			Help: "Recommendations handed to users by source",
		},
		[]string{"source"},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artswap_queue_items",
			Help: "Recommendations waiting in prefetch queues across all users",
		},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_notifications_sent_total",
			Help: "Notifications delivered by notifier",
		},
		[]string{"notifier"},
	)

	NotificationsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_notifications_failed_total",
			Help: "Notification deliveries that failed",
		},
		[]string{"notifier", "reason"},
	)

	NotificationsSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "artswap_notifications_deduplicated_total",
			Help: "Notifications skipped because the ledger already held the pair",
		},
	)

	// Circuit breaker metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artswap_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// Event bus metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_events_published_total",
			Help: "Domain events published by type",
		},
		[]string{"type"},
	)

	EventsPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_events_publish_errors_total",
			Help: "Domain events that could not be published",
		},
		[]string{"type"},
	)

	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_events_consumed_total",
			Help: "Domain events handled by consumers",
		},
		[]string{"handler", "result"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "artswap_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "artswap_api_active_requests",
			Help: "Number of in-flight API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "artswap_api_rate_limit_hits_total",
			Help: "Requests rejected by the HTTP rate limiter",
		},
		[]string{"endpoint"},
	)

	// Application info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "artswap_app_info",
			Help: "Application build information",
		},
		[]string{"version", "store_driver"},
	)
)

// RecordStoreQuery records one store call.
func RecordStoreQuery(driver, operation string, duration time.Duration, err error) {
	StoreQueryDuration.WithLabelValues(driver, operation).Observe(duration.Seconds())
	if err != nil {
		StoreQueryErrors.WithLabelValues(driver, operation, ErrorType(err)).Inc()
	}
}

// RecordOperation records the latency and outcome of a core operation.
func RecordOperation(operation string, duration time.Duration, err error) {
	OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
	OperationOutcomes.WithLabelValues(operation, ErrorType(err)).Inc()
}

// RecordGateRejection counts a refused upload or report.
func RecordGateRejection(action, reason string) {
	GateRejections.WithLabelValues(action, reason).Inc()
}

// RecordGateAccepted counts an admitted upload or report.
func RecordGateAccepted(action string) {
	GateAccepted.WithLabelValues(action).Inc()
}

// RecordCollabRebuild records a rebuild attempt. Skipped rebuilds carry no duration.
func RecordCollabRebuild(duration time.Duration, users, items int, err error) {
	if err != nil {
		CollabRebuilds.WithLabelValues("error").Inc()
		return
	}
	CollabRebuilds.WithLabelValues("ok").Inc()
	CollabRebuildDuration.Observe(duration.Seconds())
	CollabMatrixSize.WithLabelValues("users").Set(float64(users))
	CollabMatrixSize.WithLabelValues("items").Set(float64(items))
	CollabSnapshotAge.Set(float64(time.Now().Unix()))
}

// RecordCollabRebuildSkipped counts a rebuild that lost the lock race.
func RecordCollabRebuildSkipped() {
	CollabRebuilds.WithLabelValues("skipped").Inc()
}

// RecordQueueRefill counts items added to a queue from one source.
func RecordQueueRefill(source models.RecommendationSource, n int) {
	if n <= 0 {
		return
	}
	QueueRefills.WithLabelValues(string(source)).Add(float64(n))
}

// RecordServed counts a recommendation handed to a user.
func RecordServed(source models.RecommendationSource) {
	QueueServed.WithLabelValues(string(source)).Inc()
}

// RecordNotification records one delivery attempt.
func RecordNotification(notifier string, err error) {
	if err != nil {
		NotificationsFailed.WithLabelValues(notifier, ErrorType(err)).Inc()
		return
	}
	NotificationsSent.WithLabelValues(notifier).Inc()
}

// RecordCircuitBreakerTransition mirrors a gobreaker state change.
func RecordCircuitBreakerTransition(name, from, to string, state float64) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(state)
}

// RecordEventPublished records the result of publishing a domain event.
func RecordEventPublished(eventType models.EventType, err error) {
	if err != nil {
		EventsPublishErrors.WithLabelValues(string(eventType)).Inc()
		return
	}
	EventsPublished.WithLabelValues(string(eventType)).Inc()
}

// RecordEventConsumed records one handler invocation.
func RecordEventConsumed(handler string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	EventsConsumed.WithLabelValues(handler, result).Inc()
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// ErrorType maps an error to a bounded label value.
func ErrorType(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, models.ErrDuplicateContent):
		return "duplicate"
	case errors.Is(err, models.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, models.ErrReportThresholdBlocked):
		return "upload_blocked"
	case errors.Is(err, models.ErrItemNotFound), errors.Is(err, models.ErrUserNotFound):
		return "not_found"
	case errors.Is(err, models.ErrItemBlocked):
		return "blocked"
	case errors.Is(err, models.ErrForbidden):
		return "forbidden"
	case errors.Is(err, models.ErrInvalidScore), errors.Is(err, models.ErrInvalidArgument):
		return "invalid"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}
