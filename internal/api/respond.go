// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"

	"github.com/novalabs/eventsim/internal/log"
)

// Error codes carried in the "error" field of error responses.
const (
	codeBadRequest = "bad_request"
	codeInvalid    = "invalid_event"
	codeNotFound   = "not_found"
	codeInternal   = "internal_error"
)

type errorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error body correlated with the request ID.
func writeError(w http.ResponseWriter, r *http.Request, code int, errCode, message string) {
	writeJSON(w, code, errorResponse{
		Error:     errCode,
		Message:   message,
		RequestID: log.RequestIDFromContext(r.Context()),
	})
}
