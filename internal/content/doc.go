// Package content resolves book artifacts (covers and format files) to
// bytes on disk.
//
// Calibre lays a library out as <root>/<Author>/<Title (id)>/ with the
// cover stored as cover.jpg and one file per format inside the book
// directory. Resolution walks that convention directly on every request
// instead of keeping a path cache, so results always reflect the
// current filesystem state even when files are moved around externally.
//
// Absence of a book directory or artifact is reported as ErrNotFound
// and is an expected outcome, not a fault; I/O errors other than
// non-existence are returned as-is.
package content
