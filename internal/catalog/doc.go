// Package catalog reads Calibre metadata.db catalogs.
//
// A Reader wraps a read-only SQLite connection to one library's catalog
// and reconstructs denormalized Book, Author, Tag and Series entities
// from the catalog's link-table schema. Top-level query failures are
// reported as *CatalogError; per-book sub-queries (authors, series,
// tags, formats, comments) degrade to empty values instead, so one
// malformed link row never hides an entire listing.
//
// Readers never write to the catalog. The underlying connection pool is
// safe for concurrent use and stays open for the lifetime of the
// library it belongs to.
package catalog
