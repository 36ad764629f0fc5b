package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/parser"
)

// errorStatuses maps pipeline errors onto the status they are answered with
var errorStatuses = []struct {
	err    error
	status int
}{
	{parser.ErrNoFlightsTable, http.StatusUnprocessableEntity},
	{coverage.ErrUnknownHome, http.StatusNotFound},
}

// DecodeJSON decodes the request body into dest, rejecting unknown fields
// and trailing data.
func DecodeJSON(r *http.Request, dest any) error {
	defer r.Body.Close()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("unexpected data after JSON payload")
	}
	return nil
}

// WriteJSON serializes v as JSON with the provided status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

// Error writes a structured error response.
func Error(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// StatusOf returns the status mapped to err, or fallback.
func StatusOf(err error, fallback int) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	for _, m := range errorStatuses {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return fallback
}

// WriteError answers err with its mapped status and message. Errors with no
// mapping get fallback; server errors are logged and their detail is
// replaced by message.
func WriteError(w http.ResponseWriter, err error, fallback int, message string) {
	status := StatusOf(err, fallback)
	if status < http.StatusInternalServerError {
		Error(w, status, err.Error())
		return
	}
	log.Printf("%s: %v", message, err)
	Error(w, status, message)
}
