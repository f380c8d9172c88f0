package ranking

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotEntry is the compact, display-ready form of a ranked action
type SnapshotEntry struct {
	Rank        int      `json:"rank" msgpack:"r"`
	ActionID    string   `json:"action_id" msgpack:"id"`
	ActionKey   string   `json:"action_key" msgpack:"k"`
	Type        string   `json:"type" msgpack:"ty"`
	Target      string   `json:"target" msgpack:"tg"`
	Status      string   `json:"status" msgpack:"s"`
	Tier        Tier     `json:"tier" msgpack:"t"`
	Score       float64  `json:"score" msgpack:"sc"`
	RealizedROI *float64 `json:"realized_roi" msgpack:"roi"`
}

// Snapshot is one published, complete ranking
type Snapshot struct {
	ID          string          `json:"id" msgpack:"id"`
	PublishedAt time.Time       `json:"published_at" msgpack:"at"`
	Threshold   float64         `json:"proven_threshold" msgpack:"th"`
	Entries     []SnapshotEntry `json:"entries" msgpack:"e"`
}

// NewSnapshot builds a snapshot from a full ranking
func NewSnapshot(ranked []RankedAction, threshold float64, publishedAt time.Time) *Snapshot {
	entries := make([]SnapshotEntry, len(ranked))
	for i, r := range ranked {
		entries[i] = SnapshotEntry{
			Rank:        r.Rank,
			ActionID:    r.Item.ID,
			ActionKey:   r.Item.Key(),
			Type:        r.Item.Type,
			Target:      r.Item.Target,
			Status:      string(r.Item.Status),
			Tier:        r.Tier,
			Score:       r.Score,
			RealizedROI: r.RealizedROI,
		}
	}
	return &Snapshot{
		ID:          uuid.New().String(),
		PublishedAt: publishedAt.UTC(),
		Threshold:   threshold,
		Entries:     entries,
	}
}

// Encode serializes a snapshot to msgpack
func (s *Snapshot) Encode() ([]byte, error) {
	data, err := msgpack.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot parses a msgpack snapshot blob
func DecodeSnapshot(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := msgpack.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &s, nil
}

// SnapshotRepository persists published rankings.
// A snapshot row is written in one statement, so readers only see complete snapshots.
type SnapshotRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sql.DB, log zerolog.Logger) *SnapshotRepository {
	return &SnapshotRepository{
		db:  db,
		log: log.With().Str("repository", "queue_snapshots").Logger(),
	}
}

// Save stores a snapshot and returns its encoded size in bytes
func (r *SnapshotRepository) Save(s *Snapshot) (int, error) {
	data, err := s.Encode()
	if err != nil {
		return 0, err
	}

	_, err = r.db.Exec(`
		INSERT INTO queue_snapshots (id, published_at, entry_count, data)
		VALUES (?, ?, ?, ?)
	`, s.ID, s.PublishedAt.UnixNano(), len(s.Entries), data)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	r.log.Debug().Str("snapshot_id", s.ID).Int("entries", len(s.Entries)).Int("bytes", len(data)).Msg("Snapshot saved")
	return len(data), nil
}

// Latest returns the most recently published snapshot, or nil when none exists
func (r *SnapshotRepository) Latest() (*Snapshot, error) {
	var data []byte
	err := r.db.QueryRow(`
		SELECT data FROM queue_snapshots
		ORDER BY published_at DESC, rowid DESC
		LIMIT 1
	`).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// Prune keeps the newest keep snapshots and deletes the rest
func (r *SnapshotRepository) Prune(keep int) (int64, error) {
	if keep < 1 {
		keep = 1
	}
	result, err := r.db.Exec(`
		DELETE FROM queue_snapshots
		WHERE id NOT IN (
			SELECT id FROM queue_snapshots ORDER BY published_at DESC, rowid DESC LIMIT ?
		)
	`, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune snapshots: %w", err)
	}
	return result.RowsAffected()
}
