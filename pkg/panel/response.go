package panel

import (
	"encoding/json"
	"net/http"
)

// baseResponse is the JSON envelope of every API reply. Value is always
// present so clients can bind to it unconditionally; Error only appears
// on failures.
type baseResponse struct {
	Value any    `json:"value"`
	Error string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, response baseResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

func handleResponse(w http.ResponseWriter, value any) {
	writeJSON(w, http.StatusOK, baseResponse{Value: value})
}

func handleError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, baseResponse{Error: message})
}
