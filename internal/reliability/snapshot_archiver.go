package reliability

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

const (
	snapshotFilePrefix = "queue-snapshot-"
	snapshotFileSuffix = ".msgpack.gz"
	snapshotTimeLayout = "2006-01-02-150405"
	// minSnapshotsToKeep survive rotation regardless of age
	minSnapshotsToKeep = 3
)

// ObjectStore is the bucket API used by the archiver
type ObjectStore interface {
	Upload(ctx context.Context, key string, body io.Reader, size int64) error
	List(ctx context.Context, prefix string) ([]types.Object, error)
	Delete(ctx context.Context, key string) error
	Location(key string) string
}

// ArchiveInfo describes one archived snapshot in the bucket
type ArchiveInfo struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
	AgeHours  int64     `json:"age_hours"`
}

// SnapshotArchiver uploads gzipped msgpack snapshots to object storage
type SnapshotArchiver struct {
	store  ObjectStore
	prefix string
	now    func() time.Time
	log    zerolog.Logger
}

// NewSnapshotArchiver creates a new archiver writing under prefix
func NewSnapshotArchiver(store ObjectStore, prefix string, log zerolog.Logger) *SnapshotArchiver {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &SnapshotArchiver{
		store:  store,
		prefix: prefix,
		now:    time.Now,
		log:    log.With().Str("service", "snapshot_archiver").Logger(),
	}
}

// Archive uploads one snapshot and returns its location
func (a *SnapshotArchiver) Archive(ctx context.Context, s *ranking.Snapshot) (string, error) {
	data, err := s.Encode()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("failed to compress snapshot: %w", err)
	}

	key := a.keyFor(s)
	size := int64(buf.Len())
	if err := a.store.Upload(ctx, key, &buf, size); err != nil {
		return "", fmt.Errorf("failed to archive snapshot %s: %w", s.ID, err)
	}

	a.log.Info().
		Str("snapshot_id", s.ID).
		Str("key", key).
		Int64("size_bytes", size).
		Msg("Snapshot archived")

	return a.store.Location(key), nil
}

func (a *SnapshotArchiver) keyFor(s *ranking.Snapshot) string {
	return fmt.Sprintf("%s%s%s-%s%s", a.prefix, snapshotFilePrefix,
		s.PublishedAt.UTC().Format(snapshotTimeLayout), s.ID, snapshotFileSuffix)
}

// ListArchives lists archived snapshots, newest first
func (a *SnapshotArchiver) ListArchives(ctx context.Context) ([]ArchiveInfo, error) {
	objects, err := a.store.List(ctx, a.prefix+snapshotFilePrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived snapshots: %w", err)
	}

	archives := make([]ArchiveInfo, 0, len(objects))
	now := a.now()

	for _, obj := range objects {
		if obj.Key == nil {
			continue
		}

		// Key layout: <prefix>queue-snapshot-2026-10-18-030000-<id>.msgpack.gz
		key := *obj.Key
		name := strings.TrimPrefix(key, a.prefix)
		if !strings.HasPrefix(name, snapshotFilePrefix) || !strings.HasSuffix(name, snapshotFileSuffix) {
			continue
		}
		stamp := strings.TrimPrefix(name, snapshotFilePrefix)
		if len(stamp) < len(snapshotTimeLayout) {
			continue
		}

		timestamp, err := time.Parse(snapshotTimeLayout, stamp[:len(snapshotTimeLayout)])
		if err != nil {
			a.log.Warn().Str("key", key).Msg("Failed to parse timestamp from key")
			continue
		}

		var sizeBytes int64
		if obj.Size != nil {
			sizeBytes = *obj.Size
		}

		archives = append(archives, ArchiveInfo{
			Key:       key,
			Timestamp: timestamp,
			SizeBytes: sizeBytes,
			AgeHours:  int64(now.Sub(timestamp).Hours()),
		})
	}

	sort.Slice(archives, func(i, j int) bool {
		return archives[i].Timestamp.After(archives[j].Timestamp)
	})

	return archives, nil
}

// RotateOldArchives deletes archives older than retentionDays, always keeping
// the newest few. A retentionDays of 0 keeps everything.
func (a *SnapshotArchiver) RotateOldArchives(ctx context.Context, retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	archives, err := a.ListArchives(ctx)
	if err != nil {
		return 0, err
	}
	if len(archives) <= minSnapshotsToKeep {
		return 0, nil
	}

	cutoff := a.now().AddDate(0, 0, -retentionDays)
	deleted := 0
	for i, archive := range archives {
		if i < minSnapshotsToKeep || !archive.Timestamp.Before(cutoff) {
			continue
		}
		if err := a.store.Delete(ctx, archive.Key); err != nil {
			a.log.Error().Err(err).Str("key", archive.Key).Msg("Failed to delete old snapshot archive")
			continue
		}
		deleted++
	}

	a.log.Info().
		Int("deleted", deleted).
		Int("remaining", len(archives)-deleted).
		Msg("Snapshot archive rotation completed")

	return deleted, nil
}
