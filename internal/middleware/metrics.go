package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"library-viewer/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture the status code.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{w, http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsConfig holds configuration for the metrics middleware.
type MetricsConfig struct {
	// SkipPaths are paths that should not be recorded
	SkipPaths []string
}

// DefaultMetricsConfig returns the default metrics configuration.
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		SkipPaths: []string{"/metrics", "/health", "/healthz", "/livez", "/readyz"},
	}
}

// Metrics returns a middleware that records Prometheus metrics.
func Metrics(config MetricsConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, path := range config.SkipPaths {
				if strings.HasPrefix(r.URL.Path, path) {
					next.ServeHTTP(w, r)
					return
				}
			}

			metrics.HTTPRequestsInFlight.Inc()
			defer metrics.HTTPRequestsInFlight.Dec()

			wrapped := newMetricsResponseWriter(w)
			start := time.Now()

			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			path := normalizePath(r.URL.Path)
			status := strconv.Itoa(wrapped.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
		})
	}
}

// normalizePath collapses library and book identifiers so the path
// label stays low-cardinality. /api/libraries/<uuid>/books/42/cover
// becomes /api/libraries/{library}/books/{book}/cover.
func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/api/libraries/") {
		return path
	}

	parts := strings.Split(path, "/")
	// parts: "", "api", "libraries", "<id>", ...
	if len(parts) > 3 && parts[3] != "" && parts[3] != "refresh" {
		parts[3] = "{library}"
	}
	if len(parts) > 5 && parts[4] == "books" {
		parts[5] = "{book}"
	}
	if len(parts) > 7 && parts[6] == "formats" {
		parts[7] = "{format}"
	}
	return strings.Join(parts, "/")
}
