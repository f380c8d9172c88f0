package scheduler

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunRepository stores nightly run summaries in rerank_runs
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run history repository
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("repository", "rerank_runs").Logger(),
	}
}

// Record appends a run summary
func (r *RunRepository) Record(summary RunSummary) error {
	failures := summary.Failures
	if failures == nil {
		failures = []string{}
	}
	failuresJSON, err := json.Marshal(failures)
	if err != nil {
		return fmt.Errorf("failed to marshal failures: %w", err)
	}

	cancelled := 0
	if summary.Cancelled {
		cancelled = 1
	}

	_, err = r.db.Exec(`
		INSERT INTO rerank_runs (
			run_trigger, started_at, finished_at, eligible, actions_updated, duration_ms,
			failures, latency_p50_ms, latency_p95_ms, cancelled, snapshot_id, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		summary.Trigger,
		summary.StartedAt.UnixNano(),
		summary.FinishedAt.UnixNano(),
		summary.Eligible,
		summary.ActionsUpdated,
		summary.DurationMs,
		string(failuresJSON),
		summary.LatencyP50Ms,
		summary.LatencyP95Ms,
		cancelled,
		nullableString(summary.SnapshotID),
		nullableString(summary.Error),
	)
	if err != nil {
		return fmt.Errorf("failed to insert rerank run: %w", err)
	}
	return nil
}

// Recent returns the newest runs first, at most limit of them
func (r *RunRepository) Recent(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.Query(`
		SELECT id, run_trigger, started_at, finished_at, eligible, actions_updated, duration_ms,
		       failures, latency_p50_ms, latency_p95_ms, cancelled, snapshot_id, error
		FROM rerank_runs
		ORDER BY started_at DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query rerank runs: %w", err)
	}
	defer rows.Close()

	runs := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var startedAt, finishedAt int64
		var failuresJSON string
		var cancelled int
		var snapshotID, runErr sql.NullString

		if err := rows.Scan(&s.ID, &s.Trigger, &startedAt, &finishedAt, &s.Eligible, &s.ActionsUpdated,
			&s.DurationMs, &failuresJSON, &s.LatencyP50Ms, &s.LatencyP95Ms, &cancelled, &snapshotID, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan rerank run: %w", err)
		}

		s.StartedAt = time.Unix(0, startedAt).UTC()
		s.FinishedAt = time.Unix(0, finishedAt).UTC()
		s.Cancelled = cancelled != 0
		s.SnapshotID = snapshotID.String
		s.Error = runErr.String
		if err := json.Unmarshal([]byte(failuresJSON), &s.Failures); err != nil {
			r.log.Warn().Err(err).Int64("run_id", s.ID).Msg("Failed to parse run failures")
			s.Failures = []string{}
		}

		runs = append(runs, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rerank runs: %w", err)
	}
	return runs, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
