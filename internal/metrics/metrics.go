package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_viewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_viewer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)
)

// Catalog metrics
var (
	CatalogQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_catalog_queries_total",
			Help: "Total number of catalog queries",
		},
		[]string{"operation", "status"},
	)

	CatalogQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_viewer_catalog_query_duration_seconds",
			Help:    "Catalog query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	CatalogSubqueryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_catalog_subquery_failures_total",
			Help: "Total number of per-book sub-queries degraded to empty values",
		},
		[]string{"field"},
	)
)

// Scanner and index metrics
var (
	ScanRunsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_viewer_scan_runs_total",
			Help: "Total number of library scans",
		},
	)

	ScanLastRunTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_viewer_scan_last_run_timestamp",
			Help: "Unix timestamp of the last library scan",
		},
	)

	ScanLastRunDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_viewer_scan_last_run_duration_seconds",
			Help: "Duration of the last library scan in seconds",
		},
	)

	ScanSkippedCandidates = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_viewer_scan_skipped_candidates_total",
			Help: "Total number of library candidates skipped due to unreadable catalogs",
		},
	)

	LibrariesIndexed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_viewer_libraries_indexed",
			Help: "Number of libraries currently held in the index",
		},
	)

	IndexRebuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_index_rebuilds_total",
			Help: "Total number of index rebuilds",
		},
		[]string{"status"},
	)
)

// Content resolver metrics
var (
	ResolverLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_resolver_lookups_total",
			Help: "Total number of content resolver lookups",
		},
		[]string{"artifact", "status"},
	)

	ResolverBytesServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_resolver_bytes_served_total",
			Help: "Total bytes read from library content files",
		},
		[]string{"artifact"},
	)

	ThumbnailGenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_thumbnail_generations_total",
			Help: "Total number of cover thumbnail generations",
		},
		[]string{"status"},
	)
)

// Application database metrics
var (
	AppDBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_appdb_queries_total",
			Help: "Total number of application database queries",
		},
		[]string{"operation", "status"},
	)

	AppDBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "library_viewer_appdb_query_duration_seconds",
			Help:    "Application database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// Authentication metrics
var (
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_viewer_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"status"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_viewer_active_sessions",
			Help: "Number of active user sessions",
		},
	)
)

// Application info metric
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "library_viewer_app_info",
			Help: "Application information",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// SetAppInfo sets the application info metric
func SetAppInfo(version, commit, goVersion string) {
	AppInfo.WithLabelValues(version, commit, goVersion).Set(1)
}
