// Package di provides dependency injection for database connections.
package di

import (
	"fmt"

	"github.com/Jgorzitza/hotdash/internal/config"
	"github.com/Jgorzitza/hotdash/internal/database"
	"github.com/rs/zerolog"
)

// InitializeDatabases opens the growth database and applies its schema
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	// growth.db - action queue, realized attribution, snapshots, run history
	growthDB, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileStandard,
		Name:    "growth",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize growth database: %w", err)
	}

	if err := growthDB.Migrate(); err != nil {
		growthDB.Close()
		return nil, fmt.Errorf("failed to migrate growth database: %w", err)
	}
	container.GrowthDB = growthDB

	log.Info().Str("path", growthDB.Path()).Msg("Growth database initialized")

	return container, nil
}
