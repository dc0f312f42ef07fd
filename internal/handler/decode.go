package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/catchlog/internal/apperror"
	"github.com/sakif/catchlog/internal/model"
)

const maxBodyBytes = 1 << 20

// errMalformedBody marks a body that is not JSON at all, as opposed to JSON
// with a wrong field.
var errMalformedBody = errors.New("malformed JSON body")

// decodeJSON reads one JSON object from the request body into dst.
//
// A value of the wrong type for a known field, or an unparseable date, is a
// validation error naming that field. Broken JSON returns errMalformedBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return nil
	}

	var (
		typeErr *json.UnmarshalTypeError
		maxErr  *http.MaxBytesError
	)
	switch {
	case errors.Is(err, io.EOF):
		return apperror.ValidationFailed("body", "request body is required")
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "body"
		}
		return apperror.ValidationFailed(field, fmt.Sprintf("%s must be a %s", field, jsonKind(typeErr.Type.Kind().String())))
	case errors.Is(err, model.ErrTimestampOutOfRange):
		return apperror.ValidationFailed("date_caught", "date_caught must be between 1677-09-21 and 2262-04-11")
	case errors.Is(err, model.ErrInvalidTimestamp):
		return apperror.ValidationFailed("date_caught", "date_caught must be an ISO 8601 date or date-time")
	case errors.As(err, &maxErr):
		return fmt.Errorf("%w: body exceeds %d bytes", errMalformedBody, maxErr.Limit)
	default:
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
}

// jsonKind turns a Go reflect kind name into the JSON type a client sees.
func jsonKind(kind string) string {
	switch kind {
	case "float32", "float64", "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64":
		return "number"
	case "bool":
		return "boolean"
	case "struct", "map":
		return "object"
	case "slice", "array":
		return "array"
	default:
		return kind
	}
}

// catchID reads and parses the {id} path parameter.
func catchID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperror.ValidationFailed("id", "catch id must be an integer")
	}
	return id, nil
}
