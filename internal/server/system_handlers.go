package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// StatusDatabase is the database view the status endpoints need
type StatusDatabase interface {
	Name() string
	Path() string
	HealthCheck(ctx context.Context) error
}

// ActionCounter counts queued actions by lifecycle status
type ActionCounter interface {
	CountByStatus() (map[actions.Status]int, error)
}

// RerankState reports whether the nightly job is running
type RerankState interface {
	IsRunning() bool
}

// RunLister returns recent rerank runs, newest first
type RunLister interface {
	Recent(limit int) ([]scheduler.RunSummary, error)
}

// SystemHandlers serves host and service status
type SystemHandlers struct {
	log             zerolog.Logger
	db              StatusDatabase
	actions         ActionCounter
	rerank          RerankState
	runs            RunLister
	archivalEnabled bool
	systemStats     func() (float64, float64)
}

// NewSystemHandlers creates a new system handlers instance
func NewSystemHandlers(
	log zerolog.Logger,
	db StatusDatabase,
	actionCounter ActionCounter,
	rerank RerankState,
	runs RunLister,
	archivalEnabled bool,
) *SystemHandlers {
	h := &SystemHandlers{
		log:             log.With().Str("handler", "system").Logger(),
		db:              db,
		actions:         actionCounter,
		rerank:          rerank,
		runs:            runs,
		archivalEnabled: archivalEnabled,
	}
	h.systemStats = h.getSystemStats
	return h
}

// SystemStatusResponse represents the service status
type SystemStatusResponse struct {
	Status           string                `json:"status"` // "healthy" or "unhealthy"
	CPUPercent       float64               `json:"cpu_percent"`
	RAMPercent       float64               `json:"ram_percent"`
	ActionCounts     map[string]int        `json:"action_counts"`
	QueueSize        int                   `json:"queue_size"` // non-archived actions
	RerankRunning    bool                  `json:"rerank_running"`
	LastRerank       *scheduler.RunSummary `json:"last_rerank,omitempty"`
	SnapshotArchival bool                  `json:"snapshot_archival"`
	Timestamp        string                `json:"timestamp"`
}

// DatabaseStatsResponse represents database file statistics
type DatabaseStatsResponse struct {
	Name        string  `json:"name"`
	Path        string  `json:"path"`
	SizeMB      float64 `json:"size_mb"`
	WALSizeMB   float64 `json:"wal_size_mb"`
	LastChecked string  `json:"last_checked"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting system status")

	response := SystemStatusResponse{
		Status:           "healthy",
		ActionCounts:     map[string]int{},
		SnapshotArchival: h.archivalEnabled,
		Timestamp:        time.Now().UTC().Format(time.RFC3339),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := h.db.HealthCheck(ctx); err != nil {
		h.log.Warn().Err(err).Msg("Database health check failed")
		response.Status = "unhealthy"
	}

	counts, err := h.actions.CountByStatus()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count actions")
		response.Status = "unhealthy"
	}
	for status, n := range counts {
		response.ActionCounts[string(status)] = n
		if status != actions.StatusArchived {
			response.QueueSize += n
		}
	}

	response.RerankRunning = h.rerank.IsRunning()

	runs, err := h.runs.Recent(1)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to load last rerank run")
	} else if len(runs) > 0 {
		response.LastRerank = &runs[0]
	}

	response.CPUPercent, response.RAMPercent = h.systemStats()

	h.writeJSON(w, response)
}

// HandleDatabaseStats handles GET /api/system/database/stats
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	h.log.Debug().Msg("Getting database stats")

	path := h.db.Path()
	response := DatabaseStatsResponse{
		Name:        h.db.Name(),
		Path:        path,
		SizeMB:      fileSizeMB(path),
		WALSizeMB:   fileSizeMB(path + "-wal"),
		LastChecked: time.Now().UTC().Format(time.RFC3339),
	}

	h.writeJSON(w, response)
}

func fileSizeMB(path string) float64 {
	info, err := os.Stat(filepath.Clean(path))
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages.
// CPU is sampled over 100ms so the endpoint stays responsive.
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
