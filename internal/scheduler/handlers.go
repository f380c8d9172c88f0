package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// RerankTrigger starts a background run
type RerankTrigger interface {
	TriggerAsync(ctx context.Context, trigger string) error
	IsRunning() bool
}

// RunHistory lists recent run summaries
type RunHistory interface {
	Recent(limit int) ([]RunSummary, error)
}

// Handler exposes the nightly job over HTTP
type Handler struct {
	job     RerankTrigger
	history RunHistory
	baseCtx context.Context
	log     zerolog.Logger
}

// NewHandler creates a new jobs handler. Manual runs derive from baseCtx,
// not from the request, so they outlive the HTTP call.
func NewHandler(baseCtx context.Context, job RerankTrigger, history RunHistory, log zerolog.Logger) *Handler {
	return &Handler{
		job:     job,
		history: history,
		baseCtx: baseCtx,
		log:     log.With().Str("handler", "jobs").Logger(),
	}
}

// RegisterRoutes registers the job routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/jobs/rerank", func(r chi.Router) {
		r.Post("/", h.HandleTriggerRerank)
		r.Get("/", h.HandleRerankStatus)
		r.Get("/runs", h.HandleListRuns)
	})
}

// HandleTriggerRerank handles POST /api/jobs/rerank
func (h *Handler) HandleTriggerRerank(w http.ResponseWriter, r *http.Request) {
	if err := h.job.TriggerAsync(h.baseCtx, TriggerManual); err != nil {
		if errors.Is(err, ErrAlreadyRunning) {
			h.writeJSON(w, http.StatusConflict, map[string]interface{}{
				"status": "running",
				"error":  err.Error(),
			})
			return
		}
		h.log.Error().Err(err).Msg("Failed to trigger reranking")
		http.Error(w, "Failed to trigger reranking", http.StatusInternalServerError)
		return
	}

	h.log.Info().Msg("Manual reranking triggered")
	h.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "started",
	})
}

// HandleRerankStatus handles GET /api/jobs/rerank
func (h *Handler) HandleRerankStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"running": h.job.IsRunning(),
	})
}

// HandleListRuns handles GET /api/jobs/rerank/runs
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	runs, err := h.history.Recent(limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list rerank runs")
		http.Error(w, "Failed to list runs", http.StatusInternalServerError)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
