package scheduler

import (
	"context"

	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/Jgorzitza/hotdash/internal/modules/roi"
)

// ActionStoreInterface defines the action store operations used by the nightly job
type ActionStoreInterface interface {
	List(filter actions.Filter) ([]actions.ActionItem, error)
	SaveRealized(id string, results []actions.AttributionResult) error
}

// AttributorInterface defines the rate-limited batch attribution contract
type AttributorInterface interface {
	AttributeBatch(ctx context.Context, requests []roi.Request, persist roi.PersistFunc) roi.BatchResult
}

// SnapshotStoreInterface defines the contract for publishing rankings
type SnapshotStoreInterface interface {
	Save(s *ranking.Snapshot) (int, error)
	Prune(keep int) (int64, error)
}

// SnapshotArchiverInterface copies a published snapshot to off-box storage
type SnapshotArchiverInterface interface {
	Archive(ctx context.Context, s *ranking.Snapshot) (string, error)
}

// RunRecorderInterface stores the summary of each nightly run
type RunRecorderInterface interface {
	Record(summary RunSummary) error
}

// EventEmitterInterface defines the contract for event emission
type EventEmitterInterface interface {
	Emit(module string, data events.EventData)
}
