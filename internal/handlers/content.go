package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"library-viewer/internal/content"
	"library-viewer/internal/library"
	"library-viewer/internal/logging"
)

// libraryFor resolves the {id} path variable to library metadata for
// content routes, which only need the library's path on disk.
func (h *Handlers) libraryFor(w http.ResponseWriter, r *http.Request) (library.Library, bool) {
	id := mux.Vars(r)["id"]
	lib, ok := h.cache.Library(id)
	if !ok {
		respondError(w, http.StatusNotFound, "library not found")
		return library.Library{}, false
	}
	return lib, true
}

// GetCover serves a book's cover image. An optional width query
// parameter returns a downscaled thumbnail instead of the original.
func (h *Handlers) GetCover(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.libraryFor(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}

	var artifact *content.Artifact
	var err error

	if widthStr := r.URL.Query().Get("width"); widthStr != "" {
		width, convErr := strconv.Atoi(widthStr)
		if convErr != nil || width < 1 {
			respondError(w, http.StatusBadRequest, "invalid width")
			return
		}
		artifact, err = content.CoverThumbnail(lib.Path, id, width)
	} else {
		artifact, err = content.Cover(lib.Path, id)
	}

	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			respondError(w, http.StatusNotFound, "cover not found")
			return
		}
		logging.Error("cover resolution failed for book %d in %s: %v", id, lib.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to read cover")
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(artifact.Data); err != nil {
		logging.Debug("failed to write cover response: %v", err)
	}
}

// DownloadFormat serves a book file in the requested format with a
// download disposition.
func (h *Handlers) DownloadFormat(w http.ResponseWriter, r *http.Request) {
	lib, ok := h.libraryFor(w, r)
	if !ok {
		return
	}
	id, ok := bookID(w, r)
	if !ok {
		return
	}
	format := mux.Vars(r)["format"]

	artifact, err := content.Format(lib.Path, id, format)
	if err != nil {
		if errors.Is(err, content.ErrNotFound) {
			respondError(w, http.StatusNotFound, "format not available")
			return
		}
		logging.Error("format resolution failed for book %d (%s) in %s: %v", id, format, lib.ID, err)
		respondError(w, http.StatusInternalServerError, "failed to read book file")
		return
	}

	w.Header().Set("Content-Type", artifact.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	if _, err := w.Write(artifact.Data); err != nil {
		logging.Debug("failed to write book file response: %v", err)
	}
}
