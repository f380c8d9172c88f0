// Package di provides dependency injection for scheduler jobs.
package di

import (
	"context"
	"fmt"

	"github.com/Jgorzitza/hotdash/internal/config"
	"github.com/Jgorzitza/hotdash/internal/reliability"
	"github.com/Jgorzitza/hotdash/internal/scheduler"
	"github.com/rs/zerolog"
)

// RegisterJobs creates all scheduled jobs. ctx bounds every scheduled run;
// cancelling it stops a re-ranking batch in progress.
func RegisterJobs(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) (*JobInstances, error) {
	if container == nil || container.Attributor == nil {
		return nil, fmt.Errorf("services not initialized")
	}

	instances := &JobInstances{}

	// ==========================================
	// Nightly attribution and re-ranking
	// ==========================================
	nightly := scheduler.NewNightlyRerankingJob(
		container.ActionRepo,
		container.Attributor,
		container.SnapshotRepo,
		container.RunRepo,
		scheduler.NightlyRerankingConfig{
			ProvenThreshold:      cfg.Reranking.ProvenROIThreshold,
			MinDaysSinceExecuted: cfg.Reranking.MinDaysSinceExecuted,
		},
	)
	nightly.SetLogger(log)
	nightly.SetEventBus(container.EventBus)
	nightly.SetContext(ctx)
	if container.SnapshotArchiver != nil {
		nightly.SetArchiver(container.SnapshotArchiver)
	}
	instances.NightlyReranking = nightly

	// ==========================================
	// Database maintenance
	// ==========================================
	maintenance := scheduler.NewDatabaseMaintenanceJob(container.GrowthDB)
	maintenance.SetLogger(log)
	instances.DatabaseMaintenance = maintenance

	// ==========================================
	// Snapshot archive rotation
	// ==========================================
	if container.SnapshotArchiver != nil {
		instances.ArchiveRotation = reliability.NewArchiveRotationJob(
			container.SnapshotArchiver,
			cfg.SnapshotS3.RetentionDays,
			log,
		)
	}

	log.Info().Msg("All jobs created")

	return instances, nil
}

// ScheduleJobs registers every job instance with the cron scheduler
func ScheduleJobs(sched *scheduler.Scheduler, jobs *JobInstances, cfg *config.Config) error {
	if err := sched.AddJob(cfg.Reranking.Schedule, jobs.NightlyReranking); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobs.NightlyReranking.Name(), err)
	}

	// Hourly WAL checkpoint and health check
	if err := sched.AddJob("0 15 * * * *", jobs.DatabaseMaintenance); err != nil {
		return fmt.Errorf("failed to schedule %s: %w", jobs.DatabaseMaintenance.Name(), err)
	}

	if jobs.ArchiveRotation != nil {
		// Daily, after the nightly run has archived its snapshot
		if err := sched.AddJob("0 30 4 * * *", jobs.ArchiveRotation); err != nil {
			return fmt.Errorf("failed to schedule %s: %w", jobs.ArchiveRotation.Name(), err)
		}
	}

	return nil
}
