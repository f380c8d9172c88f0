package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// walTruncateFrames is the WAL size above which a TRUNCATE checkpoint runs
const walTruncateFrames = 1000

// MaintainedDatabase is a sqlite database the maintenance job looks after
type MaintainedDatabase interface {
	Conn() *sql.DB
	Name() string
	HealthCheck(ctx context.Context) error
}

// DatabaseMaintenanceJob checks database health and keeps the WAL file small
type DatabaseMaintenanceJob struct {
	log       zerolog.Logger
	databases []MaintainedDatabase
	timeout   time.Duration
}

// NewDatabaseMaintenanceJob creates a new DatabaseMaintenanceJob
func NewDatabaseMaintenanceJob(databases ...MaintainedDatabase) *DatabaseMaintenanceJob {
	return &DatabaseMaintenanceJob{
		log:       zerolog.Nop(),
		databases: databases,
		timeout:   30 * time.Second,
	}
}

// SetLogger sets the logger for the job
func (j *DatabaseMaintenanceJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// Name returns the job name
func (j *DatabaseMaintenanceJob) Name() string {
	return "database_maintenance"
}

// Run executes the maintenance job. An unhealthy database fails the job;
// checkpoint problems are only logged.
func (j *DatabaseMaintenanceJob) Run() error {
	checkedCount := 0
	for _, db := range j.databases {
		if db == nil {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
		err := db.HealthCheck(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("database %s failed health check: %w", db.Name(), err)
		}

		// PRAGMA wal_checkpoint returns: busy, log, checkpointed
		var busy, log, checkpointed int
		err = db.Conn().QueryRow("PRAGMA wal_checkpoint(PASSIVE)").Scan(&busy, &log, &checkpointed)
		if err != nil {
			j.log.Warn().
				Err(err).
				Str("database", db.Name()).
				Msg("Failed to check WAL checkpoint")
			continue
		}

		if log > walTruncateFrames {
			j.log.Warn().
				Str("database", db.Name()).
				Int("wal_frames", log).
				Int("checkpointed", checkpointed).
				Msg("WAL file is large, truncating")
			if _, err := db.Conn().Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
				j.log.Warn().Err(err).Str("database", db.Name()).Msg("WAL truncate failed")
			}
		} else {
			j.log.Debug().
				Str("database", db.Name()).
				Int("wal_frames", log).
				Msg("WAL checkpoint status OK")
		}

		checkedCount++
	}

	j.log.Info().
		Int("checked", checkedCount).
		Msg("Database maintenance completed")

	return nil
}
