package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SNAPSHOT_BUCKET", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8001, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "0 0 3 * * *", cfg.Reranking.Schedule)
	assert.Equal(t, 1.0, cfg.Reranking.ProvenROIThreshold)
	assert.Equal(t, 3, cfg.Reranking.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Reranking.Backoff)
	assert.Equal(t, 7, cfg.Reranking.MinDaysSinceExecuted)
	assert.Nil(t, cfg.SnapshotS3)
	assert.Contains(t, cfg.DatabasePath(), "growth.db")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("GO_PORT", "9100")
	t.Setenv("PROVEN_ROI_THRESHOLD", "2.5")
	t.Setenv("ATTRIBUTION_BACKOFF", "500ms")
	t.Setenv("SNAPSHOT_BUCKET", "growth-rankings")
	t.Setenv("SNAPSHOT_PREFIX", "/nightly/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Port)
	assert.Equal(t, 2.5, cfg.Reranking.ProvenROIThreshold)
	assert.Equal(t, 500*time.Millisecond, cfg.Reranking.Backoff)
	require.NotNil(t, cfg.SnapshotS3)
	assert.Equal(t, "growth-rankings", cfg.SnapshotS3.Bucket)
	assert.Equal(t, "nightly", cfg.SnapshotS3.Prefix)
	assert.Equal(t, "auto", cfg.SnapshotS3.Region)
	assert.Equal(t, 90, cfg.SnapshotS3.RetentionDays)
}

func TestValidate(t *testing.T) {
	valid := Config{
		Port:      8001,
		Reranking: RerankingConfig{Schedule: "0 0 3 * * *", MaxAttempts: 3},
	}
	require.NoError(t, valid.Validate())

	badSchedule := valid
	badSchedule.Reranking.Schedule = "every night"
	assert.Error(t, badSchedule.Validate())

	badAttempts := valid
	badAttempts.Reranking.MaxAttempts = 0
	assert.Error(t, badAttempts.Validate())

	badPort := valid
	badPort.Port = 0
	assert.Error(t, badPort.Validate())
}
