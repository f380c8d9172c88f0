package roi

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"gonum.org/v1/gonum/stat"
)

// Request asks for every lookback window of one action
type Request struct {
	ActionID  string
	ActionKey string
	KnownCost *float64
}

// Outcome is the per-action result of a batch.
// Results holds only the windows that succeeded; failed windows keep their
// stored value.
type Outcome struct {
	Request   Request
	Results   []actions.AttributionResult
	Failed    map[int]error
	Cancelled bool
}

// OK reports whether every window succeeded
func (o Outcome) OK() bool {
	return len(o.Failed) == 0 && !o.Cancelled
}

// LatencyStats summarises per-dispatch latencies in milliseconds
type LatencyStats struct {
	Count  int     `json:"count"`
	MeanMs float64 `json:"mean_ms"`
	P50Ms  float64 `json:"p50_ms"`
	P95Ms  float64 `json:"p95_ms"`
}

// BatchResult is the outcome of AttributeBatch
type BatchResult struct {
	Outcomes  []Outcome
	Latency   LatencyStats
	Cancelled bool
}

// PersistFunc stores the outcome of one action before the batch moves on
type PersistFunc func(outcome Outcome) error

// AttributeAction fetches every lookback window of one action in order.
// Cancellation stops between windows and marks the outcome cancelled.
func (a *Attributor) AttributeAction(ctx context.Context, req Request) (Outcome, []time.Duration) {
	outcome := Outcome{Request: req, Failed: make(map[int]error)}
	var latencies []time.Duration

	for _, window := range actions.Windows {
		if ctx.Err() != nil {
			outcome.Cancelled = true
			return outcome, latencies
		}

		result, dispatched, err := a.fetch(ctx, req.ActionKey, window, req.KnownCost)
		latencies = append(latencies, dispatched...)
		if err != nil {
			if errors.Is(err, ErrCancelled) || ctx.Err() != nil {
				outcome.Cancelled = true
				return outcome, latencies
			}
			outcome.Failed[window] = err
			continue
		}
		outcome.Results = append(outcome.Results, result)
	}
	return outcome, latencies
}

// AttributeBatch processes requests one at a time. A failing action never
// stops the batch; persist errors are recorded on the outcome as a failure of
// every fetched window. Cancellation stops the batch between actions and the
// interrupted action is neither persisted nor reported.
func (a *Attributor) AttributeBatch(ctx context.Context, requests []Request, persist PersistFunc) BatchResult {
	var batch BatchResult
	var latencies []time.Duration

	for _, req := range requests {
		if ctx.Err() != nil {
			batch.Cancelled = true
			break
		}

		outcome, dispatched := a.AttributeAction(ctx, req)
		latencies = append(latencies, dispatched...)
		if outcome.Cancelled {
			batch.Cancelled = true
			break
		}

		if persist != nil && len(outcome.Results) > 0 {
			if err := persist(outcome); err != nil {
				a.log.Error().Err(err).Str("action_id", req.ActionID).Msg("Failed to persist attribution results")
				for _, r := range outcome.Results {
					outcome.Failed[r.WindowDays] = err
				}
				outcome.Results = nil
			}
		}

		if !outcome.OK() {
			a.log.Warn().
				Str("action_key", req.ActionKey).
				Int("failed_windows", len(outcome.Failed)).
				Msg("Action attribution incomplete")
		}
		batch.Outcomes = append(batch.Outcomes, outcome)
	}

	batch.Latency = SummarizeLatencies(latencies)
	return batch
}

// SummarizeLatencies computes mean, p50 and p95 in milliseconds
func SummarizeLatencies(latencies []time.Duration) LatencyStats {
	if len(latencies) == 0 {
		return LatencyStats{}
	}

	ms := make([]float64, len(latencies))
	for i, d := range latencies {
		ms[i] = float64(d) / float64(time.Millisecond)
	}
	sort.Float64s(ms)

	return LatencyStats{
		Count:  len(ms),
		MeanMs: stat.Mean(ms, nil),
		P50Ms:  stat.Quantile(0.5, stat.Empirical, ms, nil),
		P95Ms:  stat.Quantile(0.95, stat.Empirical, ms, nil),
	}
}
