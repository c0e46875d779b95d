package content

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"library-viewer/internal/formats"
	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// ErrNotFound reports that a book directory or artifact does not exist.
var ErrNotFound = errors.New("content not found")

// coverFileName is the fixed cover image name inside a book directory.
const coverFileName = "cover.jpg"

// Artifact is a resolved content file ready to be served.
type Artifact struct {
	Data     []byte
	MimeType string
	Filename string
}

// FindBookDir locates the directory for a book id under a library root.
// Candidates are visited in sorted order, so when two sibling
// directories share the same "(<id>)" suffix the match is deterministic.
func FindBookDir(libraryPath string, bookID int) (string, error) {
	suffix := fmt.Sprintf("(%d)", bookID)

	authorDirs, err := os.ReadDir(libraryPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrNotFound
		}
		return "", err
	}

	// os.ReadDir returns entries sorted by filename.
	for _, author := range authorDirs {
		if !author.IsDir() {
			continue
		}
		authorPath := filepath.Join(libraryPath, author.Name())

		bookDirs, err := os.ReadDir(authorPath)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		for _, book := range bookDirs {
			if book.IsDir() && strings.HasSuffix(book.Name(), suffix) {
				return filepath.Join(authorPath, book.Name()), nil
			}
		}
	}

	return "", ErrNotFound
}

// Cover returns the bytes of a book's cover.jpg.
func Cover(libraryPath string, bookID int) (*Artifact, error) {
	a, err := cover(libraryPath, bookID)
	recordLookup("cover", err)
	return a, err
}

func cover(libraryPath string, bookID int) (*Artifact, error) {
	dir, err := FindBookDir(libraryPath, bookID)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, coverFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	metrics.ResolverBytesServed.WithLabelValues("cover").Add(float64(len(data)))
	return &Artifact{
		Data:     data,
		MimeType: formats.CoverMimeType,
		Filename: coverFileName,
	}, nil
}

// Format returns the bytes of the book file matching the requested
// format. Matching is case-insensitive on the file extension.
func Format(libraryPath string, bookID int, format string) (*Artifact, error) {
	a, err := formatFile(libraryPath, bookID, format)
	recordLookup("format", err)
	return a, err
}

func formatFile(libraryPath string, bookID int, format string) (*Artifact, error) {
	dir, err := FindBookDir(libraryPath, bookID)
	if err != nil {
		return nil, err
	}

	want := formats.Normalize(format)
	if want == "" {
		return nil, ErrNotFound
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := formats.Normalize(filepath.Ext(entry.Name()))
		if ext != want {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, ErrNotFound
			}
			return nil, err
		}

		metrics.ResolverBytesServed.WithLabelValues("format").Add(float64(len(data)))
		return &Artifact{
			Data:     data,
			MimeType: formats.MimeType(want),
			Filename: entry.Name(),
		}, nil
	}

	return nil, ErrNotFound
}

func recordLookup(artifact string, err error) {
	status := "hit"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
		logging.Debug("content: %s lookup failed: %v", artifact, err)
	}
	metrics.ResolverLookupsTotal.WithLabelValues(artifact, status).Inc()
}
