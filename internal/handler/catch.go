// Package handler contains the HTTP handlers for the catch log API.
//
// Handlers only translate between HTTP and the service: they parse path,
// query and body, call one service method, and write JSON. Business rules
// live in the service package.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/catchlog/internal/model"
)

// CatchService is what the handlers need from the service layer.
type CatchService interface {
	Create(ctx context.Context, in model.NewCatch) (*model.Catch, error)
	GetByID(ctx context.Context, id int64) (*model.Catch, error)
	List(ctx context.Context, catchType string) ([]model.Catch, error)
	Update(ctx context.Context, id int64, patch model.CatchPatch) (*model.Catch, error)
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*model.Stats, error)
}

// DeleteResponse acknowledges a delete.
type DeleteResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// CatchHandler serves the /catches and /stats endpoints.
type CatchHandler struct {
	svc    CatchService
	logger *slog.Logger
}

// NewCatchHandler creates a CatchHandler.
func NewCatchHandler(svc CatchService, logger *slog.Logger) *CatchHandler {
	return &CatchHandler{svc: svc, logger: logger}
}

// HandleCreate logs a new catch.
//
// HTTP: POST /catches
// Body: {"species": "...", "catch_type": "fishing", "weight": 2.4,
//
//	"location": "...", "date_caught": "2024-05-01T06:30", "equipment": "...", "notes": null}
func (h *CatchHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in model.NewCatch
	if err := decodeJSON(w, r, &in); err != nil {
		h.respondDecodeError(w, err)
		return
	}

	c, err := h.svc.Create(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

// HandleList returns all catches, newest first.
//
// HTTP: GET /catches?catch_type=hunting
func (h *CatchHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	catches, err := h.svc.List(r.Context(), r.URL.Query().Get("catch_type"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, catches)
}

// HandleGetByID returns one catch.
//
// HTTP: GET /catches/{id}
func (h *CatchHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	id, err := catchID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	c, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// HandleUpdate applies a partial update. Keys missing from the body are left
// unchanged; null clears weight or notes.
//
// HTTP: PUT /catches/{id}
func (h *CatchHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := catchID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var patch model.CatchPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		h.respondDecodeError(w, err)
		return
	}

	c, err := h.svc.Update(r.Context(), id, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

// HandleDelete removes a catch.
//
// HTTP: DELETE /catches/{id}
func (h *CatchHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := catchID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteResponse{Message: "catch deleted", ID: id})
}

// HandleStats returns total, hunting and fishing counts.
//
// HTTP: GET /stats
func (h *CatchHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}

func (h *CatchHandler) respondDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errMalformedBody) {
		h.logger.Warn("invalid catch JSON", slog.String("error", err.Error()))
		writeBadRequest(w, "request body must be a JSON object")
		return
	}
	writeError(w, err)
}
