package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	apperrors "turfbooking/internal/errors"
)

// Every endpoint answers with this envelope: success plus either data or a
// message.
type envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func respondData(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(envelope{Success: true, Message: message})
}

var (
	errInvalidBody     = apperrors.Validation("Invalid request body")
	errUnauthenticated = apperrors.ErrUnauthorized("Authorization token missing")
)

// respondError maps service errors onto the taxonomy. Anything that is not
// an HTTPError is an internal failure: logged, answered generically.
func respondError(w http.ResponseWriter, err error) {
	var httpErr *apperrors.HTTPError
	if errors.As(err, &httpErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(httpErr.Code)
		json.NewEncoder(w).Encode(envelope{Success: false, Message: httpErr.Message})
		return
	}
	log.Printf("Unhandled error: %v", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(envelope{Success: false, Message: "Internal server error"})
}
