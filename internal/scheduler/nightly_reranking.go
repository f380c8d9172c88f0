package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Jgorzitza/hotdash/internal/events"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/ranking"
	"github.com/Jgorzitza/hotdash/internal/modules/roi"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned when a run is requested while one is in progress
var ErrAlreadyRunning = errors.New("nightly reranking already running")

// Run triggers
const (
	TriggerScheduled = "scheduled"
	TriggerManual    = "manual"
)

// DefaultMinDaysSinceExecuted is how long an action must have been live before attribution
const DefaultMinDaysSinceExecuted = 7

// snapshotsToKeep bounds the queue_snapshots table
const snapshotsToKeep = 30

// RunSummary is the outcome of one nightly run
type RunSummary struct {
	ID             int64     `json:"id,omitempty"`
	Trigger        string    `json:"trigger"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Eligible       int       `json:"eligible"`
	ActionsUpdated int       `json:"actions_updated"`
	DurationMs     int64     `json:"duration_ms"`
	Failures       []string  `json:"failures"`
	LatencyP50Ms   float64   `json:"latency_p50_ms"`
	LatencyP95Ms   float64   `json:"latency_p95_ms"`
	Cancelled      bool      `json:"cancelled"`
	SnapshotID     string    `json:"snapshot_id,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// NightlyRerankingConfig tunes the nightly job
type NightlyRerankingConfig struct {
	ProvenThreshold      float64
	MinDaysSinceExecuted int
}

// NightlyRerankingJob fetches realized outcomes for every eligible action,
// persists them one action at a time and then publishes a fresh ranking.
// At most one run is in progress at any time.
type NightlyRerankingJob struct {
	log        zerolog.Logger
	store      ActionStoreInterface
	attributor AttributorInterface
	snapshots  SnapshotStoreInterface
	archiver   SnapshotArchiverInterface
	runs       RunRecorderInterface
	eventBus   EventEmitterInterface
	config     NightlyRerankingConfig
	baseCtx    context.Context
	now        func() time.Time
	running    atomic.Bool
}

// NewNightlyRerankingJob creates a new NightlyRerankingJob
func NewNightlyRerankingJob(
	store ActionStoreInterface,
	attributor AttributorInterface,
	snapshots SnapshotStoreInterface,
	runs RunRecorderInterface,
	config NightlyRerankingConfig,
) *NightlyRerankingJob {
	if config.MinDaysSinceExecuted <= 0 {
		config.MinDaysSinceExecuted = DefaultMinDaysSinceExecuted
	}
	return &NightlyRerankingJob{
		log:        zerolog.Nop(),
		store:      store,
		attributor: attributor,
		snapshots:  snapshots,
		runs:       runs,
		config:     config,
		baseCtx:    context.Background(),
		now:        time.Now,
	}
}

// SetLogger sets the logger for the job
func (j *NightlyRerankingJob) SetLogger(log zerolog.Logger) {
	j.log = log
}

// SetEventBus enables queue events
func (j *NightlyRerankingJob) SetEventBus(bus EventEmitterInterface) {
	j.eventBus = bus
}

// SetArchiver enables off-box archival of published snapshots
func (j *NightlyRerankingJob) SetArchiver(archiver SnapshotArchiverInterface) {
	j.archiver = archiver
}

// SetContext sets the context scheduled runs derive from; cancelling it stops a run in progress
func (j *NightlyRerankingJob) SetContext(ctx context.Context) {
	j.baseCtx = ctx
}

// Name returns the job name
func (j *NightlyRerankingJob) Name() string {
	return "nightly_reranking"
}

// IsRunning reports whether a run is in progress
func (j *NightlyRerankingJob) IsRunning() bool {
	return j.running.Load()
}

// Run executes a scheduled run
func (j *NightlyRerankingJob) Run() error {
	summary, err := j.runExclusive(j.baseCtx, TriggerScheduled)
	if err != nil {
		return err
	}
	if summary.Error != "" {
		return errors.New(summary.Error)
	}
	return nil
}

// RunNightlyReranking attributes every eligible action and republishes the
// ranking. Per-action failures are reported in the summary, never returned.
// A call made while another run is in progress returns an empty summary
// carrying the ErrAlreadyRunning message.
func (j *NightlyRerankingJob) RunNightlyReranking(ctx context.Context) RunSummary {
	summary, err := j.runExclusive(ctx, TriggerScheduled)
	if err != nil {
		return RunSummary{Error: err.Error(), Failures: []string{}}
	}
	return summary
}

// TriggerAsync starts a run in the background, or returns ErrAlreadyRunning
func (j *NightlyRerankingJob) TriggerAsync(ctx context.Context, trigger string) error {
	if !j.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	go func() {
		defer j.running.Store(false)
		j.execute(ctx, trigger)
	}()
	return nil
}

func (j *NightlyRerankingJob) runExclusive(ctx context.Context, trigger string) (RunSummary, error) {
	if !j.running.CompareAndSwap(false, true) {
		j.log.Warn().Str("trigger", trigger).Msg("Nightly reranking already running, skipping")
		return RunSummary{}, ErrAlreadyRunning
	}
	defer j.running.Store(false)
	return j.execute(ctx, trigger), nil
}

func (j *NightlyRerankingJob) execute(ctx context.Context, trigger string) (summary RunSummary) {
	summary = RunSummary{
		Trigger:   trigger,
		StartedAt: j.now().UTC(),
		Failures:  []string{},
	}
	defer func() {
		summary.FinishedAt = j.now().UTC()
		summary.DurationMs = summary.FinishedAt.Sub(summary.StartedAt).Milliseconds()
		if j.runs != nil {
			if err := j.runs.Record(summary); err != nil {
				j.log.Warn().Err(err).Msg("Failed to record rerank run")
			}
		}
	}()

	eligible, err := j.eligibleActions(summary.StartedAt)
	if err != nil {
		summary.Error = err.Error()
		j.log.Error().Err(err).Msg("Nightly reranking aborted")
		j.emit(&events.RerankFailedData{Error: summary.Error})
		return summary
	}
	summary.Eligible = len(eligible)

	j.log.Info().
		Str("trigger", trigger).
		Int("eligible", len(eligible)).
		Msg("Starting nightly reranking")
	j.emit(&events.RerankStartedData{Eligible: len(eligible), Trigger: trigger})

	requests := make([]roi.Request, len(eligible))
	for i, item := range eligible {
		requests[i] = roi.Request{
			ActionID:  item.ID,
			ActionKey: item.Key(),
			KnownCost: item.ExecutionCost,
		}
	}

	batch := j.attributor.AttributeBatch(ctx, requests, func(outcome roi.Outcome) error {
		return j.store.SaveRealized(outcome.Request.ActionID, outcome.Results)
	})

	for _, outcome := range batch.Outcomes {
		if len(outcome.Results) > 0 {
			summary.ActionsUpdated++
		}
		if !outcome.OK() {
			summary.Failures = append(summary.Failures, outcome.Request.ActionKey)
		}
	}
	summary.LatencyP50Ms = batch.Latency.P50Ms
	summary.LatencyP95Ms = batch.Latency.P95Ms
	summary.Cancelled = batch.Cancelled

	if batch.Cancelled {
		// Completed actions are already committed; the next run republishes
		j.log.Warn().
			Int("completed", len(batch.Outcomes)).
			Int("eligible", len(eligible)).
			Msg("Nightly reranking cancelled, ranking not republished")
		j.emit(&events.QueueRerankedData{
			ActionsUpdated: summary.ActionsUpdated,
			Failures:       summary.Failures,
			Cancelled:      true,
		})
		return summary
	}

	if err := j.publish(ctx, &summary); err != nil {
		summary.Error = err.Error()
		j.log.Error().Err(err).Msg("Failed to publish ranking")
		j.emit(&events.RerankFailedData{Error: summary.Error})
		return summary
	}

	j.log.Info().
		Int("actions_updated", summary.ActionsUpdated).
		Int("failures", len(summary.Failures)).
		Float64("latency_p50_ms", summary.LatencyP50Ms).
		Float64("latency_p95_ms", summary.LatencyP95Ms).
		Str("snapshot_id", summary.SnapshotID).
		Msg("Nightly reranking completed")

	return summary
}

func (j *NightlyRerankingJob) eligibleActions(now time.Time) ([]actions.ActionItem, error) {
	minAge := time.Duration(j.config.MinDaysSinceExecuted) * 24 * time.Hour
	cutoff := now.Add(-minAge)

	items, err := j.store.List(actions.Filter{
		Statuses:       []actions.Status{actions.StatusExecuted, actions.StatusAttributed},
		ExecutedBefore: &cutoff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible actions: %w", err)
	}

	eligible := items[:0]
	for _, item := range items {
		if item.EligibleForAttribution(now, minAge) {
			eligible = append(eligible, item)
		}
	}
	return eligible, nil
}

// publish ranks the complete, updated action set and stores one snapshot
func (j *NightlyRerankingJob) publish(ctx context.Context, summary *RunSummary) error {
	items, err := j.store.List(actions.Filter{
		Statuses: []actions.Status{actions.StatusPending, actions.StatusExecuted, actions.StatusAttributed},
	})
	if err != nil {
		return fmt.Errorf("failed to list actions for ranking: %w", err)
	}

	ranked := ranking.Rank(items, j.config.ProvenThreshold)
	snapshot := ranking.NewSnapshot(ranked, j.config.ProvenThreshold, j.now())

	size, err := j.snapshots.Save(snapshot)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	summary.SnapshotID = snapshot.ID

	if pruned, err := j.snapshots.Prune(snapshotsToKeep); err != nil {
		j.log.Warn().Err(err).Msg("Failed to prune old snapshots")
	} else if pruned > 0 {
		j.log.Debug().Int64("pruned", pruned).Msg("Pruned old snapshots")
	}

	proven := 0
	for _, r := range ranked {
		if r.Tier == ranking.TierProven {
			proven++
		}
	}

	j.emit(&events.QueueRerankedData{
		SnapshotID:     snapshot.ID,
		Entries:        len(ranked),
		Proven:         proven,
		ActionsUpdated: summary.ActionsUpdated,
		Failures:       summary.Failures,
		DurationMs:     j.now().UTC().Sub(summary.StartedAt).Milliseconds(),
	})

	if j.archiver != nil {
		location, err := j.archiver.Archive(ctx, snapshot)
		if err != nil {
			j.log.Warn().Err(err).Str("snapshot_id", snapshot.ID).Msg("Failed to archive snapshot")
		} else {
			j.emit(&events.SnapshotArchivedData{SnapshotID: snapshot.ID, Location: location, SizeBytes: size})
		}
	}

	return nil
}

func (j *NightlyRerankingJob) emit(data events.EventData) {
	if j.eventBus != nil {
		j.eventBus.Emit("scheduler", data)
	}
}
