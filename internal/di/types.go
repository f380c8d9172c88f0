/**
 * Package di provides dependency injection type definitions.
 *
 * The Container is the single source of truth for every long-lived instance
 * of the growth service. It is created by Wire() and handed to the server
 * and the scheduler.
 */
package di

import (
	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
	"github.com/Jgorzitza/hotdash/internal/database"
	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/Jgorzitza/hotdash/internal/modules/roi"
	"github.com/Jgorzitza/hotdash/internal/reliability"
	"github.com/Jgorzitza/hotdash/internal/scheduler"
)

// Container holds all dependencies for the application
type Container struct {
	// Database
	GrowthDB *database.DB

	// Event bus shared by services, jobs and the queue stream
	EventBus *events.Bus

	// Repositories
	ActionRepo   *actions.Repository
	SnapshotRepo *ranking.SnapshotRepository
	RunRepo      *scheduler.RunRepository

	// Clients
	AnalyticsClient *analytics.Client
	SnapshotStore   *reliability.S3Client // nil when archival is disabled

	// Services
	ActionService    *actions.Service
	Attributor       *roi.Attributor
	SnapshotArchiver *reliability.SnapshotArchiver // nil when archival is disabled
}

// JobInstances holds every scheduled job for registration and manual triggering
type JobInstances struct {
	NightlyReranking    *scheduler.NightlyRerankingJob
	DatabaseMaintenance *scheduler.DatabaseMaintenanceJob
	ArchiveRotation     *reliability.ArchiveRotationJob // nil when archival is disabled
}

// Close releases the resources held by the container
func (c *Container) Close() error {
	if c == nil || c.GrowthDB == nil {
		return nil
	}
	return c.GrowthDB.Close()
}
