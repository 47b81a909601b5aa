package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func respondJSON(log *slog.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Warn("Failed to encode response", "error", err)
	}
}

func respondError(log *slog.Logger, w http.ResponseWriter, status int, code, message string) {
	respondJSON(log, w, status, errorResponse{Error: code, Message: message})
}
