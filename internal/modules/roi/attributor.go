// Package roi fetches realized outcomes for executed actions from the
// analytics source and derives conversion, order value and ROI figures.
//
// The analytics source accepts at most one query per second. Every dispatch,
// retries included, waits on a single limiter and batches run strictly
// sequentially.
package roi

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Defaults for the retry policy
const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 2 * time.Second
)

// AnalyticsSource is the external reporting collaborator
type AnalyticsSource interface {
	Query(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error)
}

// Limiter gates dispatches to the analytics source
type Limiter interface {
	Wait(ctx context.Context) error
}

// NewLimiter returns the production limiter: one permit per second, burst 1
func NewLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Second), 1)
}

// Config tunes the retry policy. The dispatch rate is not configurable.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
}

// ErrCancelled marks a fetch abandoned because the context was cancelled or
// its deadline leaves no room for the next dispatch
var ErrCancelled = errors.New("attribution cancelled")

// Attributor turns analytics metrics into attribution results
type Attributor struct {
	source      AnalyticsSource
	limiter     Limiter
	maxAttempts int
	backoff     time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	now         func() time.Time
	log         zerolog.Logger
}

// NewAttributor creates an attributor backed by the production limiter
func NewAttributor(source AnalyticsSource, cfg Config, log zerolog.Logger) *Attributor {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff < 0 {
		cfg.Backoff = DefaultBackoff
	}
	return &Attributor{
		source:      source,
		limiter:     NewLimiter(),
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		sleep:       sleepContext,
		now:         time.Now,
		log:         log.With().Str("component", "roi_attributor").Logger(),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// GetActionAttribution fetches one (actionKey, windowDays) pair.
// knownCost nil or <= 0 yields a nil RealizedROI.
func (a *Attributor) GetActionAttribution(ctx context.Context, actionKey string, windowDays int, knownCost *float64) (actions.AttributionResult, error) {
	result, _, err := a.fetch(ctx, actionKey, windowDays, knownCost)
	return result, err
}

// fetch runs the retry loop and reports the latency of every dispatch
func (a *Attributor) fetch(ctx context.Context, actionKey string, windowDays int, knownCost *float64) (actions.AttributionResult, []time.Duration, error) {
	if !actions.ValidWindow(windowDays) {
		return actions.AttributionResult{}, nil, fmt.Errorf("unsupported attribution window: %d days", windowDays)
	}

	var latencies []time.Duration
	var lastErr error

	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		// rate.Limiter fails early when the deadline precedes the next permit,
		// before ctx.Err() reports anything
		if err := a.limiter.Wait(ctx); err != nil {
			return actions.AttributionResult{}, latencies, fmt.Errorf("%w: rate limiter wait failed: %w", ErrCancelled, err)
		}

		start := a.now()
		metrics, err := a.source.Query(ctx, actionKey, windowDays)
		latencies = append(latencies, a.now().Sub(start))

		if err == nil {
			return BuildResult(actionKey, windowDays, metrics, knownCost, a.now()), latencies, nil
		}
		if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return actions.AttributionResult{}, latencies, fmt.Errorf("%w: %w", ErrCancelled, err)
		}
		lastErr = err

		if !analytics.IsTransient(err) {
			a.log.Warn().
				Err(err).
				Str("action_key", actionKey).
				Int("window_days", windowDays).
				Msg("Permanent attribution failure, not retrying")
			return actions.AttributionResult{}, latencies, err
		}

		if attempt < a.maxAttempts {
			delay := a.backoff * time.Duration(1<<uint(attempt-1))
			a.log.Warn().
				Err(err).
				Str("action_key", actionKey).
				Int("window_days", windowDays).
				Int("attempt", attempt).
				Int("max_attempts", a.maxAttempts).
				Dur("backoff", delay).
				Msg("Attribution query failed, retrying...")
			if err := a.sleep(ctx, delay); err != nil {
				return actions.AttributionResult{}, latencies, fmt.Errorf("%w: retry backoff interrupted: %w", ErrCancelled, err)
			}
		}
	}

	a.log.Error().
		Err(lastErr).
		Str("action_key", actionKey).
		Int("window_days", windowDays).
		Int("attempts", a.maxAttempts).
		Msg("Attribution query failed after all retries")
	return actions.AttributionResult{}, latencies, fmt.Errorf("failed after %d attempts: %w", a.maxAttempts, lastErr)
}

// BuildResult derives conversion rate, average order value and ROI from raw metrics
func BuildResult(actionKey string, windowDays int, m analytics.Metrics, knownCost *float64, fetchedAt time.Time) actions.AttributionResult {
	result := actions.AttributionResult{
		ActionKey:  actionKey,
		WindowDays: windowDays,
		Sessions:   m.Sessions,
		Pageviews:  m.Pageviews,
		AddToCarts: m.AddToCarts,
		Purchases:  m.Purchases,
		Revenue:    m.Revenue,
		FetchedAt:  fetchedAt.UTC(),
	}
	if m.Sessions > 0 {
		result.ConversionRate = float64(m.Purchases) / float64(m.Sessions)
	}
	if m.Purchases > 0 {
		result.AverageOrderValue = m.Revenue / float64(m.Purchases)
	}
	result.RealizedROI = RealizedROI(m.Revenue, knownCost)
	return result
}

// RealizedROI returns revenue / cost, or nil when the cost is unknown or not positive
func RealizedROI(revenue float64, knownCost *float64) *float64 {
	if knownCost == nil || *knownCost <= 0 {
		return nil
	}
	roi := revenue / *knownCost
	return &roi
}
