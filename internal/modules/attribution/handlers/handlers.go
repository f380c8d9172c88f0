// Package handlers exposes the attribution engine over HTTP.
package handlers

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/attribution"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Largest half-life that still fits in a time.Duration
const maxHalfLifeHours = float64(math.MaxInt64) / float64(time.Hour)

// Handler handles attribution HTTP requests
type Handler struct {
	log zerolog.Logger
}

// NewHandler creates a new attribution handler
func NewHandler(log zerolog.Logger) *Handler {
	return &Handler{
		log: log.With().Str("handler", "attribution").Logger(),
	}
}

// AttributeRequest carries either a single journey or a list of journeys
type AttributeRequest struct {
	Touchpoints   []attribution.Touchpoint   `json:"touchpoints"`
	Journeys      [][]attribution.Touchpoint `json:"journeys,omitempty"`
	Model         string                     `json:"model"`
	HalfLifeHours float64                    `json:"half_life_hours,omitempty"`
	Precision     *int                       `json:"precision,omitempty"`
}

// AttributeResponse is the normalized credit split
type AttributeResponse struct {
	Model   attribution.Model     `json:"model"`
	Credits attribution.CreditMap `json:"credits"`
	Raw     attribution.CreditMap `json:"raw"`
}

// RegisterRoutes registers the attribution routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/attribution", h.HandleAttribute)
}

// HandleAttribute handles POST /api/attribution
func (h *Handler) HandleAttribute(w http.ResponseWriter, r *http.Request) {
	var req AttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	model, ok := attribution.ParseModel(req.Model)
	if !ok {
		http.Error(w, fmt.Sprintf("unknown attribution model %q", req.Model), http.StatusBadRequest)
		return
	}
	if req.HalfLifeHours < 0 {
		http.Error(w, "half_life_hours must not be negative", http.StatusBadRequest)
		return
	}
	if req.HalfLifeHours >= maxHalfLifeHours {
		http.Error(w, "half_life_hours is too large", http.StatusBadRequest)
		return
	}

	precision := attribution.DefaultPrecision
	if req.Precision != nil {
		precision = *req.Precision
		if precision < 0 || precision > attribution.MaxPrecision {
			http.Error(w, fmt.Sprintf("precision must be between 0 and %d", attribution.MaxPrecision), http.StatusBadRequest)
			return
		}
	}

	opts := attribution.Options{DecayHalfLife: time.Duration(req.HalfLifeHours * float64(time.Hour))}

	var raw attribution.CreditMap
	if len(req.Journeys) > 0 {
		raw = attribution.AttributeJourneys(req.Journeys, model, opts)
	} else {
		raw = attribution.Attribute(req.Touchpoints, model, opts)
	}

	h.log.Debug().
		Str("model", string(model)).
		Int("touchpoints", len(req.Touchpoints)).
		Int("journeys", len(req.Journeys)).
		Msg("Attributed credits")

	h.writeJSON(w, http.StatusOK, AttributeResponse{
		Model:   model,
		Credits: attribution.NormalizeCredits(raw, precision),
		Raw:     raw,
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
