package transport

import (
	"encoding/json"
	"net/http"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// WriteJSON marshals before touching the ResponseWriter so a payload that
// cannot be encoded still produces a well-formed 500 instead of a truncated
// body under a 200 status.
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	body, err := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func WriteError(w http.ResponseWriter, status int, message string, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}
