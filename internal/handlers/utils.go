package handlers

import (
	"encoding/json"
	"net/http"

	"library-viewer/internal/logging"
)

// ApiResponse is the JSON envelope every API endpoint returns.
type ApiResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding errors are logged since we typically cannot recover from
// them in an HTTP handler context.
func writeJSON(w http.ResponseWriter, v any) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// respondData writes a successful envelope around data.
func respondData(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, ApiResponse{Success: true, Data: data})
}

// respondError writes an error envelope with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, ApiResponse{Success: false, Error: message})
}
