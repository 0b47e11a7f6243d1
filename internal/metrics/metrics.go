package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Analysis service metrics for production monitoring
var (
	// Analysis run metrics
	AnalysisRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restrack_ai_analysis_runs_total",
			Help: "Total number of analysis runs",
		},
		[]string{"trigger", "status"}, // trigger: api/schedule/cli
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restrack_ai_analysis_duration_seconds",
			Help:    "Analysis run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"trigger"},
	)

	RecordsLoaded = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "restrack_ai_records_loaded",
			Help: "Number of records loaded by the last analysis run",
		},
		[]string{"kind"},
	)

	// Findings metrics
	AnomaliesDetected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restrack_ai_anomalies_detected_total",
			Help: "Total number of anomalies reported, by detector and severity",
		},
		[]string{"detector", "severity"}, // detector: consumption/kitchen/disposal/location
	)

	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restrack_ai_recommendations_total",
			Help: "Total number of optimization recommendations emitted",
		},
		[]string{"reason"},
	)

	ProjectedAnnualSavings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restrack_ai_projected_annual_savings",
			Help: "Annual savings identified by the last analysis run",
		},
	)

	NextMonthBudget = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restrack_ai_next_month_budget",
			Help: "Predicted total spend for the next month from the last analysis run",
		},
	)

	// Store metrics
	StoreOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restrack_ai_store_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~1s
		},
		[]string{"operation"},
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restrack_ai_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "restrack_ai_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "restrack_ai_http_rate_limited_total",
			Help: "Total number of requests rejected by the rate limiter",
		},
	)

	// WebSocket metrics
	WebSocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "restrack_ai_websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WebSocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "restrack_ai_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: inbound/outbound
	)
)

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
