// Package library discovers Calibre libraries on disk and caches them.
//
// A Scanner walks a base directory to a bounded depth looking for
// directories that directly contain a metadata.db catalog. Each
// discovered library gets a stable identifier derived from its absolute
// path, so the same filesystem location always maps to the same id
// across rescans and restarts.
//
// The Cache owns the authoritative mapping from library id to metadata
// and open catalog reader. It is safe for concurrent use; all access is
// serialized behind a single mutex, which is fine at the expected scale
// of tens of libraries with rare, operator-triggered rebuilds.
package library
