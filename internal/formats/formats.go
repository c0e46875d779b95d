package formats

import (
	"sort"
	"strings"
)

// CoverMimeType is the MIME type of Calibre cover images, which are
// always stored as cover.jpg in the book directory.
const CoverMimeType = "image/jpeg"

// mimeTypes maps uppercase format identifiers to their MIME types.
var mimeTypes = map[string]string{
	"EPUB": "application/epub+zip",
	"PDF":  "application/pdf",
	"MOBI": "application/x-mobipocket-ebook",
	"AZW":  "application/vnd.amazon.ebook",
	"AZW3": "application/vnd.amazon.ebook",
	"HTML": "text/html",
	"TXT":  "text/plain; charset=utf-8",
	"CBZ":  "application/vnd.comicbook+zip",
	"CBR":  "application/vnd.comicbook-rar",
	"FB2":  "application/x-fictionbook+xml",
	"RTF":  "application/rtf",
	"LIT":  "application/x-ms-reader",
	"DJVU": "image/vnd.djvu",
}

// Normalize converts a format identifier to its canonical uppercase form,
// stripping a leading dot so both "epub" and ".epub" are accepted.
func Normalize(format string) string {
	return strings.ToUpper(strings.TrimPrefix(format, "."))
}

// NormalizeSet normalizes a list of format identifiers, dropping empties
// and duplicates. The result is sorted for deterministic comparison.
func NormalizeSet(requested []string) []string {
	seen := make(map[string]bool, len(requested))
	var out []string
	for _, f := range requested {
		n := Normalize(f)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MimeType returns the MIME type for a format identifier (any case).
// Returns "application/octet-stream" if the format is not recognized.
func MimeType(format string) string {
	if mime, ok := mimeTypes[Normalize(format)]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsKnown returns true if the format has a dedicated MIME type.
func IsKnown(format string) bool {
	_, ok := mimeTypes[Normalize(format)]
	return ok
}
