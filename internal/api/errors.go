// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ManuGH/reelfeed/internal/engine"
	"github.com/ManuGH/reelfeed/internal/feed"
	"github.com/ManuGH/reelfeed/internal/social"
)

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, social.ErrLoginRequired), errors.Is(err, feed.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "login_required"})
	case errors.Is(err, social.ErrRateLimited):
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate_limited"})
	case errors.Is(err, engine.ErrUnknownReel):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown_reel"})
	case errors.Is(err, feed.ErrRejected):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "rejected"})
	default:
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	}
}

// writeBadRequest writes a 400 response for malformed input.
func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}
