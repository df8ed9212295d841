package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortado_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cortado_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"method", "path"})
)

// Moderation metrics
var (
	BansAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortado_bans_applied_total",
		Help: "Total number of bans applied, by duration",
	}, []string{"duration"})

	ReportsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_reports_submitted_total",
		Help: "Total number of reports submitted",
	})

	ReportsResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortado_reports_resolved_total",
		Help: "Total number of reports resolved, by outcome",
	}, []string{"status"})
)

// Notification metrics
var (
	NotificationsDispatchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortado_notifications_dispatched_total",
		Help: "Total number of notifications persisted and dispatched, by type",
	}, []string{"type"})

	NotificationChannelErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cortado_notification_channel_errors_total",
		Help: "Total number of soft channel delivery failures",
	}, []string{"channel"})

	NotificationsDeliveredRealtime = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_notifications_delivered_realtime_total",
		Help: "Total number of notifications pushed to a live connection",
	})

	NotificationsQueuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_notifications_queued_total",
		Help: "Total number of notifications queued for offline users",
	})

	NotificationsEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_notifications_evicted_total",
		Help: "Total number of queued notifications evicted at capacity",
	})

	EmailsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_notification_emails_sent_total",
		Help: "Total number of notification emails sent",
	})

	PushSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cortado_notification_push_sent_total",
		Help: "Total number of push notifications sent",
	})
)

// Realtime hub gauges
var (
	LiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cortado_live_connections",
		Help: "Number of live websocket connections registered with the hub",
	})
)
