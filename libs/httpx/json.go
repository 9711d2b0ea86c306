package httpx

import (
	"encoding/json"
	"net/http"
)

// WriteJSON marshals v before touching the response so an encoding failure can still
// produce a clean 500.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

type errorBody struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

// WriteError emits {"error": msg} with an optional machine readable reason.
func WriteError(w http.ResponseWriter, status int, msg string, reason string) {
	WriteJSON(w, status, errorBody{Error: msg, Reason: reason})
}
