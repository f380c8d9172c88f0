// Package handlers serves the ranked action queue over HTTP.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// ActionLister returns every action that takes part in ranking
type ActionLister interface {
	ListRankable() ([]actions.ActionItem, error)
}

// SnapshotReader returns the last published ranking
type SnapshotReader interface {
	Latest() (*ranking.Snapshot, error)
}

// Handler handles queue HTTP requests
type Handler struct {
	lister          ActionLister
	snapshots       SnapshotReader
	provenThreshold float64
	log             zerolog.Logger
}

// NewHandler creates a new queue handler
func NewHandler(lister ActionLister, snapshots SnapshotReader, provenThreshold float64, log zerolog.Logger) *Handler {
	return &Handler{
		lister:          lister,
		snapshots:       snapshots,
		provenThreshold: provenThreshold,
		log:             log.With().Str("handler", "queue").Logger(),
	}
}

// RegisterRoutes registers the queue routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/queue", func(r chi.Router) {
		r.Get("/", h.HandleGetQueue)
		r.Get("/snapshot", h.HandleGetSnapshot)
	})
}

// HandleGetQueue handles GET /api/queue.
// The ranking is computed live from the current store contents.
func (h *Handler) HandleGetQueue(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			http.Error(w, "limit must be a non-negative integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	items, err := h.lister.ListRankable()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list actions")
		http.Error(w, "Failed to load queue", http.StatusInternalServerError)
		return
	}

	ranked := ranking.Rank(items, h.provenThreshold)
	total := len(ranked)
	ranked = ranking.Top(ranked, limit)

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": ranked,
		"metadata": map[string]interface{}{
			"total":            total,
			"returned":         len(ranked),
			"proven_threshold": h.provenThreshold,
			"timestamp":        time.Now().Format(time.RFC3339),
		},
	})
}

// HandleGetSnapshot handles GET /api/queue/snapshot
func (h *Handler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Latest()
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to load snapshot")
		http.Error(w, "Failed to load snapshot", http.StatusInternalServerError)
		return
	}
	if snapshot == nil {
		http.Error(w, "no snapshot published yet", http.StatusNotFound)
		return
	}

	h.writeJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
