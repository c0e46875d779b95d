// Package formats defines the ebook formats the library viewer can serve.
//
// Calibre stores format identifiers as uppercase strings (EPUB, PDF, ...)
// both in its catalog database and as file extensions on disk, so every
// lookup in this package normalizes its input to uppercase first. Unknown
// formats are still servable; they fall back to a generic binary MIME type.
package formats
