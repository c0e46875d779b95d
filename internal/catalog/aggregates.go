package catalog

import (
	"context"
	"database/sql"
	"time"
)

// Author is an aggregate over the books_authors_link table. BookCount
// is computed live; zero-book authors are included.
type Author struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Sort      *string `json:"sort"`
	BookCount int     `json:"book_count"`
}

// Tag is an aggregate over the books_tags_link table.
type Tag struct {
	ID        int    `json:"id"`
	Name      string `json:"name"`
	BookCount int    `json:"book_count"`
}

// Series is an aggregate over the books_series_link table.
type Series struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Sort      *string `json:"sort"`
	BookCount int     `json:"book_count"`
}

// ListAuthors returns all authors with live book counts, ordered by
// sort key.
func (r *Reader) ListAuthors(ctx context.Context) ([]Author, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_authors", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.name, a.sort, COUNT(bal.book) AS book_count
		FROM authors a
		LEFT JOIN books_authors_link bal ON a.id = bal.author
		GROUP BY a.id, a.name, a.sort
		ORDER BY a.sort`,
	)
	if err != nil {
		return nil, &CatalogError{Op: "list_authors", Err: err}
	}
	defer rows.Close()

	var authors []Author
	for rows.Next() {
		var a Author
		var sort sql.NullString
		if err = rows.Scan(&a.ID, &a.Name, &sort, &a.BookCount); err != nil {
			return nil, &CatalogError{Op: "list_authors", Err: err}
		}
		if sort.Valid {
			a.Sort = &sort.String
		}
		authors = append(authors, a)
	}
	if err = rows.Err(); err != nil {
		return nil, &CatalogError{Op: "list_authors", Err: err}
	}
	return authors, nil
}

// ListTags returns all tags with live book counts, ordered by name.
func (r *Reader) ListTags(ctx context.Context) ([]Tag, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_tags", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT t.id, t.name, COUNT(btl.book) AS book_count
		FROM tags t
		LEFT JOIN books_tags_link btl ON t.id = btl.tag
		GROUP BY t.id, t.name
		ORDER BY t.name`,
	)
	if err != nil {
		return nil, &CatalogError{Op: "list_tags", Err: err}
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		if err = rows.Scan(&t.ID, &t.Name, &t.BookCount); err != nil {
			return nil, &CatalogError{Op: "list_tags", Err: err}
		}
		tags = append(tags, t)
	}
	if err = rows.Err(); err != nil {
		return nil, &CatalogError{Op: "list_tags", Err: err}
	}
	return tags, nil
}

// ListSeries returns all series with live book counts, ordered by sort
// key.
func (r *Reader) ListSeries(ctx context.Context) ([]Series, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("list_series", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT s.id, s.name, s.sort, COUNT(bsl.book) AS book_count
		FROM series s
		LEFT JOIN books_series_link bsl ON s.id = bsl.series
		GROUP BY s.id, s.name, s.sort
		ORDER BY s.sort`,
	)
	if err != nil {
		return nil, &CatalogError{Op: "list_series", Err: err}
	}
	defer rows.Close()

	var series []Series
	for rows.Next() {
		var s Series
		var sort sql.NullString
		if err = rows.Scan(&s.ID, &s.Name, &sort, &s.BookCount); err != nil {
			return nil, &CatalogError{Op: "list_series", Err: err}
		}
		if sort.Valid {
			s.Sort = &sort.String
		}
		series = append(series, s)
	}
	if err = rows.Err(); err != nil {
		return nil, &CatalogError{Op: "list_series", Err: err}
	}
	return series, nil
}
