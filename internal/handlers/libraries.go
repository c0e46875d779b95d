package handlers

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"library-viewer/internal/appdb"
	"library-viewer/internal/logging"
)

// ListLibraries returns every indexed library, sorted by name.
func (h *Handlers) ListLibraries(w http.ResponseWriter, _ *http.Request) {
	respondData(w, h.cache.Libraries())
}

// GetLibrary returns one library by id.
func (h *Handlers) GetLibrary(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	lib, ok := h.cache.Library(id)
	if !ok {
		respondError(w, http.StatusNotFound, "library not found")
		return
	}
	respondData(w, lib)
}

// RefreshLibraries rescans the base directory and rebuilds the index.
// Requires librarian privileges.
func (h *Handlers) RefreshLibraries(w http.ResponseWriter, r *http.Request) {
	user := h.requireRole(w, r, appdb.RoleLibrarian)
	if user == nil {
		return
	}

	if _, err := os.Stat(h.config.LibrariesDir); err != nil {
		logging.Error("Refresh failed, libraries directory unavailable: %v", err)
		respondError(w, http.StatusInternalServerError, "libraries directory unavailable")
		return
	}

	libraries, err := h.cache.Rebuild(r.Context(), h.config.LibrariesDir)
	if err != nil {
		logging.Error("Index rebuild failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to rebuild library index")
		return
	}

	h.store.RecordAudit(appdb.AuditRefresh, user.Username,
		fmt.Sprintf("%d libraries indexed", len(libraries)), r.RemoteAddr)

	respondData(w, libraries)
}
