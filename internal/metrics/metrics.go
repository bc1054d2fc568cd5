package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP метрики
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "track_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// WebSocket метрики
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_websocket_connections_active",
			Help: "Number of active WebSocket connections",
		},
	)

	WebSocketMessagesOut = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_websocket_messages_out_total",
			Help: "Total number of WebSocket messages sent",
		},
		[]string{"type"},
	)

	WebSocketErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_websocket_errors_total",
			Help: "Total number of WebSocket errors",
		},
	)

	// MQTT метрики
	MQTTMessagesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_mqtt_messages_received_total",
			Help: "Total number of MQTT messages received",
		},
	)

	MQTTParseErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_mqtt_parse_errors_total",
			Help: "Total number of MQTT message parse errors",
		},
	)

	MQTTConnectionStatus = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_mqtt_connection_status",
			Help: "MQTT connection status (1 = connected, 0 = disconnected)",
		},
	)

	// Redis метрики
	RedisOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "track_redis_operation_duration_seconds",
			Help:    "Duration of Redis operations in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisPublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_redis_publish_errors_total",
			Help: "Total number of failed live position publications",
		},
	)

	// Метрики записи трека
	FixesAdmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_fixes_admitted_total",
			Help: "Fixes appended to the path, by admission reason",
		},
		[]string{"reason"},
	)

	FixesDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_fixes_discarded_total",
			Help: "Fixes that only updated the current position",
		},
	)

	SessionState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_session_state",
			Help: "Track session state (0 = idle, 1 = tracking, 2 = paused, 3 = stopped)",
		},
	)

	PathPoints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "track_path_points",
			Help: "Number of points in the current path",
		},
	)

	POIsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "track_pois_total",
			Help: "Total number of points of interest added",
		},
	)

	ExportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "track_exports_total",
			Help: "Total number of track exports by format",
		},
		[]string{"format"},
	)

	ExportDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "track_export_duration_seconds",
			Help:    "Time spent rendering a track file",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
	)
)
