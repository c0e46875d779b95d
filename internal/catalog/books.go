package catalog

import (
	"context"
	"database/sql"
	"time"
)

// Book is a fully reconstructed catalog entry. The ID is the catalog's
// native primary key and is only unique within one library.
type Book struct {
	ID          int      `json:"id"`
	Title       string   `json:"title"`
	Authors     []string `json:"authors"`
	Series      *string  `json:"series"`
	SeriesIndex *float64 `json:"series_index"`
	Tags        []string `json:"tags"`
	Comments    *string  `json:"comments"`
	HasCover    bool     `json:"has_cover"`
	Formats     []string `json:"formats"`
	Sort        *string  `json:"sort"`
}

// ListBooks returns all books ordered by descending catalog timestamp,
// capped at 10000 rows. Sub-query failures degrade the affected field
// to its empty value.
func (r *Reader) ListBooks(ctx context.Context) ([]Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_books", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx,
		"SELECT id, title, has_cover, sort FROM books ORDER BY timestamp DESC LIMIT ?",
		maxBooks,
	)
	if err != nil {
		return nil, &CatalogError{Op: "list_books", Err: err}
	}
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var b Book
		var sort sql.NullString
		if err = rows.Scan(&b.ID, &b.Title, &b.HasCover, &sort); err != nil {
			return nil, &CatalogError{Op: "list_books", Err: err}
		}
		if sort.Valid {
			b.Sort = &sort.String
		}
		r.fillBookDetails(ctx, &b)
		books = append(books, b)
	}
	if err = rows.Err(); err != nil {
		return nil, &CatalogError{Op: "list_books", Err: err}
	}

	return books, nil
}

// GetBook returns a single book by its catalog id, or (nil, nil) if no
// row matches.
func (r *Reader) GetBook(ctx context.Context, bookID int) (*Book, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_book", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var b Book
	var sort sql.NullString
	err = r.db.QueryRowContext(ctx,
		"SELECT id, title, has_cover, sort FROM books WHERE id = ?",
		bookID,
	).Scan(&b.ID, &b.Title, &b.HasCover, &sort)
	if err == sql.ErrNoRows {
		err = nil
		return nil, nil
	}
	if err != nil {
		return nil, &CatalogError{Op: "get_book", Err: err}
	}
	if sort.Valid {
		b.Sort = &sort.String
	}

	r.fillBookDetails(ctx, &b)
	return &b, nil
}

// fillBookDetails runs the per-book sub-queries. Each failure is
// absorbed into the field's empty value.
func (r *Reader) fillBookDetails(ctx context.Context, b *Book) {
	var err error

	if b.Authors, err = r.bookAuthors(ctx, b.ID); err != nil {
		b.Authors = []string{}
		degraded("authors", b.ID, err)
	}
	if b.Series, b.SeriesIndex, err = r.bookSeries(ctx, b.ID); err != nil {
		b.Series, b.SeriesIndex = nil, nil
		degraded("series", b.ID, err)
	}
	if b.Tags, err = r.bookTags(ctx, b.ID); err != nil {
		b.Tags = []string{}
		degraded("tags", b.ID, err)
	}
	if b.Formats, err = r.bookFormats(ctx, b.ID); err != nil {
		b.Formats = []string{}
		degraded("formats", b.ID, err)
	}
	if b.Comments, err = r.bookComments(ctx, b.ID); err != nil {
		b.Comments = nil
		degraded("comments", b.ID, err)
	}
}

func (r *Reader) bookAuthors(ctx context.Context, bookID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.name FROM authors a
		INNER JOIN books_authors_link bal ON a.id = bal.author
		WHERE bal.book = ?`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authors := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		authors = append(authors, name)
	}
	return authors, rows.Err()
}

func (r *Reader) bookSeries(ctx context.Context, bookID int) (*string, *float64, error) {
	var name string
	var index float64
	err := r.db.QueryRowContext(ctx, `
		SELECT s.name, b.series_index FROM series s
		INNER JOIN books_series_link bsl ON s.id = bsl.series
		INNER JOIN books b ON bsl.book = b.id
		WHERE bsl.book = ?`,
		bookID,
	).Scan(&name, &index)
	if err == sql.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	return &name, &index, nil
}

func (r *Reader) bookTags(ctx context.Context, bookID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT t.name FROM tags t
		INNER JOIN books_tags_link btl ON t.id = btl.tag
		WHERE btl.book = ?`,
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tags := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tags = append(tags, name)
	}
	return tags, rows.Err()
}

func (r *Reader) bookFormats(ctx context.Context, bookID int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT format FROM data WHERE book = ? ORDER BY format",
		bookID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fmts := []string{}
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fmts = append(fmts, f)
	}
	return fmts, rows.Err()
}

func (r *Reader) bookComments(ctx context.Context, bookID int) (*string, error) {
	var text string
	err := r.db.QueryRowContext(ctx,
		"SELECT text FROM comments WHERE book = ?",
		bookID,
	).Scan(&text)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &text, nil
}

// BookFormats returns the available format strings for one book,
// alphabetically ordered. Unlike the per-book sub-query used during
// reconstruction, a failure here is a top-level error.
func (r *Reader) BookFormats(ctx context.Context, bookID int) ([]string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("book_formats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	fmts, err := r.bookFormats(ctx, bookID)
	if err != nil {
		return nil, &CatalogError{Op: "book_formats", Err: err}
	}
	return fmts, nil
}
