// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/Jgorzitza/hotdash/internal/scheduler"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories on the growth database
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil || container.GrowthDB == nil {
		return fmt.Errorf("container database not initialized")
	}

	conn := container.GrowthDB.Conn()

	container.ActionRepo = actions.NewRepository(conn, log)
	container.SnapshotRepo = ranking.NewSnapshotRepository(conn, log)
	container.RunRepo = scheduler.NewRunRepository(conn, log)

	log.Info().Msg("All repositories initialized")

	return nil
}
