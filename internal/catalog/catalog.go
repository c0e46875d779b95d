package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// Default timeout for catalog queries
const defaultTimeout = 5 * time.Second

// maxBooks bounds full listings on very large catalogs.
const maxBooks = 10000

// CatalogError reports a failed top-level catalog query.
type CatalogError struct {
	Op  string
	Err error
}

func (e *CatalogError) Error() string {
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *CatalogError) Unwrap() error {
	return e.Err
}

// Reader provides read-only access to one library's metadata.db.
type Reader struct {
	db   *sql.DB
	path string
}

// Open opens a catalog file read-only. The returned Reader holds a
// connection pool that must be released with Close.
func Open(path string) (*Reader, error) {
	// mode=ro refuses writes at the driver level; immutable is not used
	// because Calibre may update the catalog while we hold it open.
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, &CatalogError{Op: "open", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, &CatalogError{Op: "open", Err: err}
	}

	// Catalogs are small and read-only; a handful of connections is plenty.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	logging.Debug("Opened catalog %s", path)
	return &Reader{db: db, path: path}, nil
}

// Path returns the catalog file path this Reader was opened with.
func (r *Reader) Path() string {
	return r.path
}

// Close releases the underlying connection pool.
func (r *Reader) Close() error {
	return r.db.Close()
}

// recordQuery records catalog query metrics for a top-level operation.
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.CatalogQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.CatalogQueryDuration.WithLabelValues(operation).Observe(duration)
}

// degraded logs and counts a sub-query failure that was absorbed into an
// empty field value. Centralized so the "hide sub-errors, surface
// top-level errors" policy stays consistent.
func degraded(field string, bookID int, err error) {
	metrics.CatalogSubqueryFailures.WithLabelValues(field).Inc()
	logging.Debug("catalog: %s sub-query for book %d degraded: %v", field, bookID, err)
}
