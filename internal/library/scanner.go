package library

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"library-viewer/internal/catalog"
	"library-viewer/internal/logging"
	"library-viewer/internal/metrics"
)

// CatalogFileName is the fixed catalog file name that marks a library root.
const CatalogFileName = "metadata.db"

// maxScanDepth bounds the walk so author/book subdirectories inside a
// library are never mistaken for library roots.
const maxScanDepth = 2

// Library describes one discovered collection.
type Library struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	CatalogPath string `json:"catalog_path"`
	BookCount   int    `json:"book_count"`
}

// ScanError reports a failed filesystem walk. Individual unreadable
// candidates do not produce a ScanError; they are skipped.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error {
	return e.Err
}

// Scanner discovers library roots under a base directory.
type Scanner struct {
	basePath string
}

// NewScanner creates a Scanner for the given base directory.
func NewScanner(basePath string) *Scanner {
	return &Scanner{basePath: basePath}
}

// ID derives the stable library identifier for a path: a name-based
// UUID (v5) over the absolute path bytes, so identity survives rescans
// and restarts without any on-disk state.
func ID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(abs)).String()
}

// Scan walks the base directory and returns all discovered libraries,
// sorted by name. A candidate whose catalog cannot be opened or counted
// is skipped with a warning; a walk failure aborts the scan.
func (s *Scanner) Scan(ctx context.Context) ([]Library, error) {
	start := time.Now()
	metrics.ScanRunsTotal.Inc()

	var libraries []Library
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}

		catalogPath := filepath.Join(path, CatalogFileName)
		if _, statErr := os.Stat(catalogPath); statErr == nil {
			if lib, ok := s.describe(ctx, path, catalogPath); ok {
				libraries = append(libraries, lib)
			}
		}

		// Stop descending once the depth bound is reached so book
		// directories inside a library are never treated as candidates.
		if walkDepth(s.basePath, path) >= maxScanDepth {
			return fs.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, &ScanError{Path: s.basePath, Err: err}
	}

	sort.Slice(libraries, func(i, j int) bool {
		return libraries[i].Name < libraries[j].Name
	})

	metrics.ScanLastRunTimestamp.SetToCurrentTime()
	metrics.ScanLastRunDuration.Set(time.Since(start).Seconds())
	logging.Info("Scan of %s found %d libraries in %v", s.basePath, len(libraries), time.Since(start))

	return libraries, nil
}

// describe builds the Library record for one candidate root. Returns
// ok=false when the catalog cannot be opened or counted; the candidate
// is skipped rather than failing the scan.
func (s *Scanner) describe(ctx context.Context, path, catalogPath string) (Library, bool) {
	count, err := s.bookCount(ctx, catalogPath)
	if err != nil {
		metrics.ScanSkippedCandidates.Inc()
		logging.Warn("Skipping library candidate %s: %v", path, err)
		return Library{}, false
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	return Library{
		ID:          ID(abs),
		Name:        filepath.Base(abs),
		Path:        abs,
		CatalogPath: filepath.Join(abs, CatalogFileName),
		BookCount:   count,
	}, true
}

func (s *Scanner) bookCount(ctx context.Context, catalogPath string) (int, error) {
	r, err := catalog.Open(catalogPath)
	if err != nil {
		return 0, err
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			logging.Error("failed to close catalog %s after counting: %v", catalogPath, closeErr)
		}
	}()

	books, err := r.ListBooks(ctx)
	if err != nil {
		return 0, err
	}
	return len(books), nil
}

// walkDepth returns how many levels below base the path lies.
func walkDepth(base, path string) int {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
