// Package di provides dependency injection for service implementations.
package di

import (
	"context"
	"fmt"

	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
	"github.com/Jgorzitza/hotdash/internal/config"
	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/roi"
	"github.com/Jgorzitza/hotdash/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates the event bus, clients and services.
// Repositories must already be initialized.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil || container.ActionRepo == nil {
		return fmt.Errorf("repositories not initialized")
	}

	container.EventBus = events.NewBus(log)

	container.ActionService = actions.NewService(container.ActionRepo, log)
	container.ActionService.SetEventBus(container.EventBus)

	// Analytics collaborator used for realized attribution
	if cfg.Analytics.PropertyID == "" {
		log.Warn().Msg("ANALYTICS_PROPERTY_ID not set, realized attribution fetches will fail until configured")
	}
	container.AnalyticsClient = analytics.NewClient(
		cfg.Analytics.BaseURL,
		cfg.Analytics.PropertyID,
		cfg.Analytics.APIKey,
		cfg.Analytics.Timeout,
		log,
	)

	container.Attributor = roi.NewAttributor(container.AnalyticsClient, roi.Config{
		MaxAttempts: cfg.Reranking.MaxAttempts,
		Backoff:     cfg.Reranking.Backoff,
	}, log)

	// Optional off-box archival of published rankings
	if cfg.SnapshotS3 != nil {
		store, err := reliability.NewS3Client(ctx, cfg.SnapshotS3, log)
		if err != nil {
			return fmt.Errorf("failed to initialize snapshot store: %w", err)
		}
		container.SnapshotStore = store
		container.SnapshotArchiver = reliability.NewSnapshotArchiver(store, cfg.SnapshotS3.Prefix, log)

		log.Info().
			Str("bucket", cfg.SnapshotS3.Bucket).
			Str("prefix", cfg.SnapshotS3.Prefix).
			Msg("Snapshot archival enabled")
	}

	log.Info().Msg("All services initialized")

	return nil
}
