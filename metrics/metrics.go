package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizchat_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizchat_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Business metrics
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizchat_messages_sent_total",
			Help: "Total messages persisted",
		},
		[]string{"conversation_type"},
	)

	MembershipChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizchat_membership_changes_total",
			Help: "Membership mutations by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	LastMessageCacheFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizchat_last_message_cache_failures_total",
			Help: "Failed refreshes of the conversation last message cache",
		},
	)

	// Realtime metrics
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizchat_broadcasts_total",
			Help: "Broadcast deliveries by event, sink and outcome",
		},
		[]string{"event", "sink", "outcome"},
	)

	WebsocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizchat_websocket_clients",
			Help: "Currently connected websocket clients",
		},
	)

	WebsocketDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizchat_websocket_dropped_frames_total",
			Help: "Frames dropped because a client queue was full",
		},
	)

	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizchat_rate_limit_hits_total",
			Help: "Total rate limit hits",
		},
		[]string{"endpoint"},
	)
)
