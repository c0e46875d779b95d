// Package handlers provides HTTP request handlers for the library
// viewer API.
//
// It includes handlers for:
//   - Library listing, lookup, and index refresh
//   - Book listings with search and format filters
//   - Author/tag/series aggregates
//   - Cover images, thumbnails, and book file downloads
//   - User authentication and sessions
//   - The audit trail, health checks, and version info
package handlers
