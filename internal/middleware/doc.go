// Package middleware provides HTTP middleware for the library viewer.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics with low-cardinality path labels
//   - gzip compression for JSON responses
package middleware
