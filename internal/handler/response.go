package handler

// RESPONSE HELPERS:
// Every handler answers through writeJSON, writeBadRequest or writeError, so
// each endpoint sets Content-Type, status and body the same way.
//
// ONE ERROR SHAPE:
// Every error body looks like
//   {"error": "not_found", "message": "catch not found with id 42"}
// and validation errors add a "fields" list. The frontend can show
// message as-is and highlight inputs from fields without caring which
// endpoint or status produced it.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/catchlog/internal/apperror"
)

// ErrorResponse is the error body returned by every endpoint:
//
//	{"error": "validation_error", "message": "species is required",
//	 "fields": [{"field": "species", "message": "species is required"}]}
type ErrorResponse struct {
	Error   string                `json:"error"`
	Message string                `json:"message"`
	Fields  []apperror.FieldError `json:"fields,omitempty"`
}

// writeJSON sends data as JSON with the given status.
//
// HEADER ORDER MATTERS:
// Header().Set must come before WriteHeader. Once WriteHeader runs the
// headers are on the wire and later changes are silently dropped.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeBadRequest reports a body that could not be parsed at all.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error:   "bad_request",
		Message: message,
	})
}

// writeError maps a domain error to an HTTP status:
//
//	ErrValidation  → 422
//	ErrNotFound    → 404
//	ErrPersistence → 500
//
// Anything unrecognised is a 500 with a generic message; internal error text
// is never sent to the client.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"
		var fields []apperror.FieldError

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusUnprocessableEntity
			errorType = "validation_error"
			fields = appErr.Fields
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrPersistence):
			errorType = "persistence_error"
		}

		writeJSON(w, status, ErrorResponse{
			Error:   errorType,
			Message: appErr.Message,
			Fields:  fields,
		})
		return
	}

	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "An internal error occurred",
	})
}
