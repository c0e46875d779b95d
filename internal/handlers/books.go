package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"library-viewer/internal/catalog"
	"library-viewer/internal/formats"
	"library-viewer/internal/logging"
)

// catalogFor resolves the {id} path variable to an open catalog
// reader, writing the 404 envelope when the library is unknown.
func (h *Handlers) catalogFor(w http.ResponseWriter, r *http.Request) (*catalog.Reader, bool) {
	id := mux.Vars(r)["id"]
	reader, ok := h.cache.Catalog(id)
	if !ok {
		respondError(w, http.StatusNotFound, "library not found")
		return nil, false
	}
	return reader, true
}

// bookID parses the {bookId} path variable.
func bookID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(mux.Vars(r)["bookId"])
	if err != nil || id < 1 {
		respondError(w, http.StatusBadRequest, "invalid book id")
		return 0, false
	}
	return id, true
}

func catalogFault(w http.ResponseWriter, operation string, err error) {
	logging.Error("catalog %s failed: %v", operation, err)
	respondError(w, http.StatusInternalServerError, "catalog query failed: "+err.Error())
}

// ListBooks returns a library's books, optionally filtered by a
// case-insensitive search term (title or author) and by formats.
func (h *Handlers) ListBooks(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}

	books, err := reader.ListBooks(r.Context())
	if err != nil {
		catalogFault(w, "list books", err)
		return
	}

	search := strings.TrimSpace(r.URL.Query().Get("search"))
	var wantFormats []string
	if raw := r.URL.Query().Get("formats"); raw != "" {
		wantFormats = formats.NormalizeSet(strings.Split(raw, ","))
	}

	if search != "" || len(wantFormats) > 0 {
		books = filterBooks(books, search, wantFormats)
	}

	respondData(w, books)
}

// filterBooks keeps books matching the search term (substring on title
// or any author, case-insensitive) and carrying at least one of the
// requested formats.
func filterBooks(books []catalog.Book, search string, wantFormats []string) []catalog.Book {
	needle := strings.ToLower(search)

	filtered := []catalog.Book{}
	for _, b := range books {
		if needle != "" && !matchesSearch(b, needle) {
			continue
		}
		if len(wantFormats) > 0 && !hasAnyFormat(b.Formats, wantFormats) {
			continue
		}
		filtered = append(filtered, b)
	}
	return filtered
}

func matchesSearch(b catalog.Book, needle string) bool {
	if strings.Contains(strings.ToLower(b.Title), needle) {
		return true
	}
	for _, author := range b.Authors {
		if strings.Contains(strings.ToLower(author), needle) {
			return true
		}
	}
	return false
}

func hasAnyFormat(have, want []string) bool {
	for _, h := range have {
		normalized := formats.Normalize(h)
		for _, w := range want {
			if normalized == w {
				return true
			}
		}
	}
	return false
}

// GetBook returns one book by id.
func (h *Handlers) GetBook(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	book, err := reader.GetBook(r.Context(), id)
	if err != nil {
		catalogFault(w, "get book", err)
		return
	}
	if book == nil {
		respondError(w, http.StatusNotFound, "book not found")
		return
	}
	respondData(w, book)
}

// ListBookFormats returns the formats available for one book.
func (h *Handlers) ListBookFormats(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	bookFormats, err := reader.BookFormats(r.Context(), id)
	if err != nil {
		catalogFault(w, "book formats", err)
		return
	}
	respondData(w, bookFormats)
}

// ListAuthors returns the library's author aggregates.
func (h *Handlers) ListAuthors(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}

	authors, err := reader.ListAuthors(r.Context())
	if err != nil {
		catalogFault(w, "list authors", err)
		return
	}
	respondData(w, authors)
}

// ListTags returns the library's tag aggregates.
func (h *Handlers) ListTags(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}

	tags, err := reader.ListTags(r.Context())
	if err != nil {
		catalogFault(w, "list tags", err)
		return
	}
	respondData(w, tags)
}

// ListSeries returns the library's series aggregates.
func (h *Handlers) ListSeries(w http.ResponseWriter, r *http.Request) {
	reader, ok := h.catalogFor(w, r)
	if !ok {
		return
	}

	series, err := reader.ListSeries(r.Context())
	if err != nil {
		catalogFault(w, "list series", err)
		return
	}
	respondData(w, series)
}
