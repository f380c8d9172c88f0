// Package handlers provides HTTP handlers for action submission and lifecycle.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ActionService is the subset of actions.Service used by the handlers
type ActionService interface {
	Submit(item actions.ActionItem) (*actions.ActionItem, error)
	Get(id string) (*actions.ActionItem, error)
	MarkExecuted(id string, at time.Time, cost *float64) error
	Archive(id string) error
}

// Handler handles action HTTP requests
type Handler struct {
	service ActionService
	log     zerolog.Logger
}

// NewHandler creates a new action handler
func NewHandler(service ActionService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "actions").Logger(),
	}
}

// ExecuteRequest records execution of an approved action
type ExecuteRequest struct {
	ExecutedAt    *time.Time `json:"executed_at,omitempty"`
	ExecutionCost *float64   `json:"execution_cost,omitempty"`
}

// HandleSubmit handles POST /api/actions
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	var item actions.ActionItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		h.log.Error().Err(err).Msg("Failed to decode request body")
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	stored, err := h.service.Submit(item)
	if err != nil {
		var validationErr *actions.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
				"valid":  false,
				"errors": validationErr.Errors,
			})
			return
		}
		if errors.Is(err, actions.ErrDuplicateID) {
			http.Error(w, "action id already exists", http.StatusConflict)
			return
		}
		h.log.Error().Err(err).Msg("Failed to submit action")
		http.Error(w, "Failed to submit action", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusCreated, stored)
}

// HandleGet handles GET /api/actions/{id}
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.Get(id)
	if err != nil {
		h.writeServiceError(w, err, id)
		return
	}

	h.writeJSON(w, http.StatusOK, item)
}

// HandleExecute handles POST /api/actions/{id}/execute
func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req ExecuteRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	if req.ExecutionCost != nil && *req.ExecutionCost < 0 {
		http.Error(w, "execution_cost must not be negative", http.StatusBadRequest)
		return
	}

	var at time.Time
	if req.ExecutedAt != nil {
		at = *req.ExecutedAt
	}

	if err := h.service.MarkExecuted(id, at, req.ExecutionCost); err != nil {
		h.writeServiceError(w, err, id)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": actions.StatusExecuted,
	})
}

// HandleArchive handles POST /api/actions/{id}/archive
func (h *Handler) HandleArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.service.Archive(id); err != nil {
		h.writeServiceError(w, err, id)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":     id,
		"status": actions.StatusArchived,
	})
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, actions.ErrNotFound):
		http.Error(w, "action not found", http.StatusNotFound)
	case errors.Is(err, actions.ErrInvalidTransition):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.log.Error().Err(err).Str("action_id", id).Msg("Action request failed")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
