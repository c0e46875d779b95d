package handlers

import (
	"net/http"
	"strconv"

	"library-viewer/internal/appdb"
	"library-viewer/internal/logging"
)

// GetAudit returns recent audit events, newest first. Admin only.
func (h *Handlers) GetAudit(w http.ResponseWriter, r *http.Request) {
	if user := h.requireRole(w, r, appdb.RoleAdmin); user == nil {
		return
	}

	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListAuditEvents(limit)
	if err != nil {
		logging.Error("failed to list audit events: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to read audit trail")
		return
	}
	respondData(w, events)
}
