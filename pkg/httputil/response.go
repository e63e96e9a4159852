// Package httputil provides HTTP handler utilities for consistent error
// handling and JSON encoding/decoding.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/safesight/hseai/pkg/fault"
)

// ErrorResponse is the envelope for failed operations. The kind is stable and
// machine-checkable; the message is end-user-displayable.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a successful response (200 OK) with JSON data
func WriteSuccess(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, data)
}

// WriteFault writes the error envelope for err, mapping its fault kind to the
// HTTP status code. Errors without a fault kind surface as internal.
func WriteFault(w http.ResponseWriter, err error) {
	kind := fault.KindOf(err)
	WriteJSON(w, fault.HTTPStatus(kind), ErrorResponse{
		Success: false,
		Kind:    string(kind),
		Message: fault.MessageOf(err),
	})
}

// WriteFaultKind writes the error envelope for an explicit kind and message.
func WriteFaultKind(w http.ResponseWriter, kind fault.Kind, message string) {
	WriteJSON(w, fault.HTTPStatus(kind), ErrorResponse{
		Success: false,
		Kind:    string(kind),
		Message: message,
	})
}
