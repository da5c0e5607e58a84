package common

import (
	"encoding/json"
	"net/http"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Data writes a success payload wrapped in the {"data": ...} envelope.
func Data(w http.ResponseWriter, status int, v any) {
	write(w, status, map[string]any{"data": v})
}

// Error writes an error response in the canonical {"error": {code, message,
// details}} shape shared by every endpoint.
func Error(w http.ResponseWriter, status int, code, message string, details any) {
	write(w, status, map[string]any{"error": errorBody{
		Code:    code,
		Message: message,
		Details: details,
	}})
}

func write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
