// Package metrics defines the Prometheus collectors exported by the
// library viewer.
//
// All metrics share the "library_viewer_" prefix. Collectors are
// registered at package init time via promauto, so importing any
// package that records a metric is enough to expose it on /metrics.
package metrics
