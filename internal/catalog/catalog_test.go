package catalog

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

// testSchema mirrors the subset of Calibre's metadata.db schema the
// Reader touches.
const testSchema = `
CREATE TABLE books (
	id INTEGER PRIMARY KEY,
	title TEXT NOT NULL,
	sort TEXT,
	timestamp TEXT,
	series_index REAL NOT NULL DEFAULT 1.0,
	has_cover BOOL DEFAULT 0
);
CREATE TABLE authors (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	sort TEXT
);
CREATE TABLE books_authors_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	author INTEGER NOT NULL
);
CREATE TABLE tags (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL
);
CREATE TABLE books_tags_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	tag INTEGER NOT NULL
);
CREATE TABLE series (
	id INTEGER PRIMARY KEY,
	name TEXT NOT NULL,
	sort TEXT
);
CREATE TABLE books_series_link (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	series INTEGER NOT NULL
);
CREATE TABLE data (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	format TEXT NOT NULL,
	name TEXT
);
CREATE TABLE comments (
	id INTEGER PRIMARY KEY,
	book INTEGER NOT NULL,
	text TEXT NOT NULL
);
`

const testData = `
INSERT INTO books (id, title, sort, timestamp, series_index, has_cover) VALUES
	(1, 'The Fellowship of the Ring', 'Fellowship of the Ring, The', '2024-03-01 10:00:00', 1.0, 1),
	(2, 'Dune', 'Dune', '2024-05-01 10:00:00', 1.0, 0),
	(3, 'Il Nome della Rosa', 'Nome della Rosa, Il', '2024-01-01 10:00:00', 1.0, 1);
INSERT INTO authors (id, name, sort) VALUES
	(1, 'J. R. R. Tolkien', 'Tolkien, J. R. R.'),
	(2, 'Frank Herbert', 'Herbert, Frank'),
	(3, 'Umberto Eco', 'Eco, Umberto'),
	(4, 'Zero Books', 'Aardvark, Z.');
INSERT INTO books_authors_link (book, author) VALUES (1, 1), (2, 2), (3, 3);
INSERT INTO tags (id, name) VALUES (1, 'Fantasy'), (2, 'Sci-Fi'), (3, 'Unused');
INSERT INTO books_tags_link (book, tag) VALUES (1, 1), (2, 2);
INSERT INTO series (id, name, sort) VALUES
	(1, 'The Lord of the Rings', 'Lord of the Rings, The'),
	(2, 'Abandoned Series', 'Abandoned Series');
INSERT INTO books_series_link (book, series) VALUES (1, 1);
INSERT INTO data (book, format, name) VALUES
	(1, 'MOBI', 'fellowship'),
	(1, 'EPUB', 'fellowship'),
	(2, 'PDF', 'dune');
INSERT INTO comments (book, text) VALUES (1, 'One ring to rule them all.');
`

// newTestCatalog writes a populated metadata.db into a temp dir and
// returns an open Reader for it.
func newTestCatalog(t *testing.T, statements ...string) *Reader {
	t.Helper()

	path := filepath.Join(t.TempDir(), "metadata.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to create test catalog: %v", err)
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to populate test catalog: %v", err)
		}
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close test catalog: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open(%q) failed: %v", path, err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestListBooks(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)

	books, err := r.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("ListBooks() error: %v", err)
	}
	if len(books) != 3 {
		t.Fatalf("ListBooks() returned %d books, want 3", len(books))
	}

	// Most recent timestamp first.
	wantOrder := []int{2, 1, 3}
	for i, want := range wantOrder {
		if books[i].ID != want {
			t.Errorf("books[%d].ID = %d, want %d", i, books[i].ID, want)
		}
	}

	fellowship := books[1]
	if fellowship.Title != "The Fellowship of the Ring" {
		t.Errorf("Title = %q", fellowship.Title)
	}
	if !fellowship.HasCover {
		t.Error("HasCover = false, want true")
	}
	if !reflect.DeepEqual(fellowship.Authors, []string{"J. R. R. Tolkien"}) {
		t.Errorf("Authors = %v", fellowship.Authors)
	}
	if fellowship.Series == nil || *fellowship.Series != "The Lord of the Rings" {
		t.Errorf("Series = %v", fellowship.Series)
	}
	if fellowship.SeriesIndex == nil || *fellowship.SeriesIndex != 1.0 {
		t.Errorf("SeriesIndex = %v", fellowship.SeriesIndex)
	}
	if !reflect.DeepEqual(fellowship.Tags, []string{"Fantasy"}) {
		t.Errorf("Tags = %v", fellowship.Tags)
	}
	if !reflect.DeepEqual(fellowship.Formats, []string{"EPUB", "MOBI"}) {
		t.Errorf("Formats = %v, want alphabetical [EPUB MOBI]", fellowship.Formats)
	}
	if fellowship.Comments == nil || *fellowship.Comments != "One ring to rule them all." {
		t.Errorf("Comments = %v", fellowship.Comments)
	}
	if fellowship.Sort == nil || *fellowship.Sort != "Fellowship of the Ring, The" {
		t.Errorf("Sort = %v", fellowship.Sort)
	}

	// Book without series, tags beyond its own, or comments.
	rosa := books[2]
	if rosa.Series != nil || rosa.SeriesIndex != nil {
		t.Errorf("Series = %v, SeriesIndex = %v, want nil", rosa.Series, rosa.SeriesIndex)
	}
	if len(rosa.Tags) != 0 {
		t.Errorf("Tags = %v, want empty", rosa.Tags)
	}
	if rosa.Comments != nil {
		t.Errorf("Comments = %v, want nil", rosa.Comments)
	}
}

func TestGetBookMatchesListing(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)
	ctx := context.Background()

	books, err := r.ListBooks(ctx)
	if err != nil {
		t.Fatalf("ListBooks() error: %v", err)
	}

	for _, want := range books {
		got, err := r.GetBook(ctx, want.ID)
		if err != nil {
			t.Fatalf("GetBook(%d) error: %v", want.ID, err)
		}
		if got == nil {
			t.Fatalf("GetBook(%d) = nil for a listed book", want.ID)
		}
		if !reflect.DeepEqual(*got, want) {
			t.Errorf("GetBook(%d) = %+v, want %+v", want.ID, *got, want)
		}
	}
}

func TestGetBookAbsent(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)

	got, err := r.GetBook(context.Background(), 999)
	if err != nil {
		t.Fatalf("GetBook(999) error: %v", err)
	}
	if got != nil {
		t.Errorf("GetBook(999) = %+v, want nil", got)
	}
}

func TestBookFormats(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)
	ctx := context.Background()

	fmts, err := r.BookFormats(ctx, 1)
	if err != nil {
		t.Fatalf("BookFormats(1) error: %v", err)
	}
	if !reflect.DeepEqual(fmts, []string{"EPUB", "MOBI"}) {
		t.Errorf("BookFormats(1) = %v, want [EPUB MOBI]", fmts)
	}

	fmts, err = r.BookFormats(ctx, 3)
	if err != nil {
		t.Fatalf("BookFormats(3) error: %v", err)
	}
	if len(fmts) != 0 {
		t.Errorf("BookFormats(3) = %v, want empty", fmts)
	}
}

func TestListAuthorsIncludesZeroBookEntries(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)

	authors, err := r.ListAuthors(context.Background())
	if err != nil {
		t.Fatalf("ListAuthors() error: %v", err)
	}
	if len(authors) != 4 {
		t.Fatalf("ListAuthors() returned %d entries, want 4", len(authors))
	}

	// Ordered by sort key, so the zero-book author comes first.
	if authors[0].Name != "Zero Books" || authors[0].BookCount != 0 {
		t.Errorf("authors[0] = %+v, want Zero Books with count 0", authors[0])
	}
	for _, a := range authors[1:] {
		if a.BookCount != 1 {
			t.Errorf("author %q BookCount = %d, want 1", a.Name, a.BookCount)
		}
	}
}

func TestListTags(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)

	tags, err := r.ListTags(context.Background())
	if err != nil {
		t.Fatalf("ListTags() error: %v", err)
	}

	wantNames := []string{"Fantasy", "Sci-Fi", "Unused"}
	wantCounts := []int{1, 1, 0}
	if len(tags) != len(wantNames) {
		t.Fatalf("ListTags() returned %d entries, want %d", len(tags), len(wantNames))
	}
	for i := range tags {
		if tags[i].Name != wantNames[i] || tags[i].BookCount != wantCounts[i] {
			t.Errorf("tags[%d] = %+v, want %s/%d", i, tags[i], wantNames[i], wantCounts[i])
		}
	}
}

func TestListSeries(t *testing.T) {
	r := newTestCatalog(t, testSchema, testData)

	series, err := r.ListSeries(context.Background())
	if err != nil {
		t.Fatalf("ListSeries() error: %v", err)
	}
	if len(series) != 2 {
		t.Fatalf("ListSeries() returned %d entries, want 2", len(series))
	}
	// "Abandoned Series" sorts before "Lord of the Rings, The".
	if series[0].Name != "Abandoned Series" || series[0].BookCount != 0 {
		t.Errorf("series[0] = %+v", series[0])
	}
	if series[1].Name != "The Lord of the Rings" || series[1].BookCount != 1 {
		t.Errorf("series[1] = %+v", series[1])
	}
}

func TestEmptyCatalog(t *testing.T) {
	r := newTestCatalog(t, testSchema)

	books, err := r.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("ListBooks() on empty catalog error: %v", err)
	}
	if len(books) != 0 {
		t.Errorf("ListBooks() = %v, want empty", books)
	}
}

func TestSubqueryDegradation(t *testing.T) {
	// A catalog missing the comments table entirely: the per-book
	// sub-query fails, but listing must still succeed with the field
	// degraded to absent.
	schemaNoComments := `
	CREATE TABLE books (
		id INTEGER PRIMARY KEY,
		title TEXT NOT NULL,
		sort TEXT,
		timestamp TEXT,
		series_index REAL NOT NULL DEFAULT 1.0,
		has_cover BOOL DEFAULT 0
	);
	CREATE TABLE authors (id INTEGER PRIMARY KEY, name TEXT NOT NULL, sort TEXT);
	CREATE TABLE books_authors_link (id INTEGER PRIMARY KEY, book INTEGER, author INTEGER);
	CREATE TABLE tags (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
	CREATE TABLE books_tags_link (id INTEGER PRIMARY KEY, book INTEGER, tag INTEGER);
	CREATE TABLE series (id INTEGER PRIMARY KEY, name TEXT NOT NULL, sort TEXT);
	CREATE TABLE books_series_link (id INTEGER PRIMARY KEY, book INTEGER, series INTEGER);
	CREATE TABLE data (id INTEGER PRIMARY KEY, book INTEGER, format TEXT NOT NULL, name TEXT);
	INSERT INTO books (id, title, timestamp) VALUES (1, 'Orphan', '2024-01-01');
	INSERT INTO authors (id, name, sort) VALUES (1, 'Someone', 'Someone');
	INSERT INTO books_authors_link (book, author) VALUES (1, 1);
	`
	r := newTestCatalog(t, schemaNoComments)

	books, err := r.ListBooks(context.Background())
	if err != nil {
		t.Fatalf("ListBooks() error: %v", err)
	}
	if len(books) != 1 {
		t.Fatalf("ListBooks() returned %d books, want 1", len(books))
	}
	if books[0].Comments != nil {
		t.Errorf("Comments = %v, want nil after degradation", books[0].Comments)
	}
	if !reflect.DeepEqual(books[0].Authors, []string{"Someone"}) {
		t.Errorf("Authors = %v, degradation must not affect healthy fields", books[0].Authors)
	}
}

func TestOpenMissingCatalog(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "metadata.db"))
	if err == nil {
		t.Fatal("Open() on a missing file succeeded, want error")
	}
	var cerr *CatalogError
	if !errors.As(err, &cerr) {
		t.Errorf("Open() error = %T, want *CatalogError", err)
	}
}
