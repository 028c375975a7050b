package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/middleware"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
// The request id is echoed when the request carried one.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	body := map[string]string{
		"error":   errorCode,
		"message": message,
	}
	if id := w.Header().Get(middleware.RequestIDHeader); id != "" {
		body["request_id"] = id
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}
