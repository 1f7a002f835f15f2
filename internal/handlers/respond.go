// Package handlers exposes the orchestrators and the history store over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"terratruce-gateway/internal/history"
)

// writeJSON is a small helper to send JSON responses consistently.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

// ownerID identifies the caller. There is no authentication; X-User-ID is
// trusted as given.
func ownerID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return history.AnonymousOwner
}
