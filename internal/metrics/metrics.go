package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label value constants to prevent typos
const (
	// Sync outcomes
	ResultSuccess = "success"
	ResultFailure = "failure"

	// HTTP endpoints
	EndpointOAuthStart    = "oauth_start"
	EndpointOAuthCallback = "oauth_callback"
	EndpointFeatures      = "features"
	EndpointTokenStatus   = "token_status"
	EndpointPredictions   = "predictions"
	EndpointHealth        = "health"

	// Strava API operations
	OpExchangeCode   = "exchange_code"
	OpRefreshToken   = "refresh_token"
	OpGetAthlete     = "get_athlete"
	OpListActivities = "list_activities"

	// Rate limit types
	RateLimitOverall15Min = "overall_15min"
	RateLimitOverallDaily = "overall_daily"

	// Rate limit buckets
	BucketLimit = "limit"
	BucketUsage = "usage"

	// Store tables
	TableAthletes   = "athletes"
	TableActivities = "activities"
	TableFeatures   = "activity_features"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint", "status_code"},
	)
)

// Strava API Metrics
var (
	StravaAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_requests_total",
			Help: "Total number of Strava API requests",
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "strava_api_request_duration_seconds",
			Help:    "Strava API request latency in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"operation", "status_code"},
	)

	StravaAPIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "strava_api_retries_total",
			Help: "Total number of retried Strava API requests",
		},
		[]string{"operation", "reason"},
	)

	StravaRateLimitUsage = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "strava_rate_limit_usage",
			Help: "Strava API rate limit usage",
		},
		[]string{"limit_type", "bucket"},
	)
)

// Sync Metrics
var (
	SyncAthletesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_athletes_total",
			Help: "Total number of athlete syncs by result",
		},
		[]string{"result"},
	)

	SyncActivitiesRetrievedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_activities_retrieved_total",
			Help: "Total number of activities retrieved from Strava",
		},
	)

	SyncActivitiesUpsertedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_activities_upserted_total",
			Help: "Total number of activities written to the store",
		},
	)

	SyncCursorAdvancesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_cursor_advances_total",
			Help: "Total number of cursor advances",
		},
	)

	SyncTokenRotationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_token_rotations_total",
			Help: "Total number of refreshes that returned a new refresh token",
		},
	)

	SyncRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Duration of a full sync run",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
	)

	SyncAthleteActivitiesCount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_athlete_activities_count",
			Help:    "Number of activities retrieved per athlete sync",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
	)
)

// Feature Metrics
var (
	FeatureRowsComputedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feature_rows_computed_total",
			Help: "Total number of feature rows written",
		},
	)

	FeatureRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feature_run_duration_seconds",
			Help:    "Duration of a full feature recomputation",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)
)

// Store Metrics
var (
	StoreRows = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "store_rows",
			Help: "Number of rows per store table",
		},
		[]string{"table"},
	)
)
