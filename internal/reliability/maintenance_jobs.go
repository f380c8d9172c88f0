package reliability

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// ArchiveRotator is the part of SnapshotArchiver the rotation job needs
type ArchiveRotator interface {
	RotateOldArchives(ctx context.Context, retentionDays int) (int, error)
}

// ArchiveRotationJob removes expired snapshot archives from the bucket
type ArchiveRotationJob struct {
	rotator       ArchiveRotator
	retentionDays int
	timeout       time.Duration
	log           zerolog.Logger
}

// NewArchiveRotationJob creates a new rotation job
func NewArchiveRotationJob(rotator ArchiveRotator, retentionDays int, log zerolog.Logger) *ArchiveRotationJob {
	return &ArchiveRotationJob{
		rotator:       rotator,
		retentionDays: retentionDays,
		timeout:       5 * time.Minute,
		log:           log.With().Str("job", "snapshot_archive_rotation").Logger(),
	}
}

// Name returns the job name for scheduler
func (j *ArchiveRotationJob) Name() string {
	return "snapshot_archive_rotation"
}

// Run executes the rotation
func (j *ArchiveRotationJob) Run() error {
	if j.retentionDays <= 0 {
		j.log.Debug().Msg("Snapshot retention disabled, skipping rotation")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	startTime := time.Now()
	deleted, err := j.rotator.RotateOldArchives(ctx, j.retentionDays)
	if err != nil {
		j.log.Error().Err(err).Msg("Snapshot archive rotation failed")
		return fmt.Errorf("failed to rotate snapshot archives: %w", err)
	}

	j.log.Info().
		Int("deleted", deleted).
		Int("retention_days", j.retentionDays).
		Dur("duration_ms", time.Since(startTime)).
		Msg("Snapshot archive rotation completed")

	return nil
}
