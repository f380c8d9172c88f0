package roi

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

type mockSource struct {
	mu        sync.Mutex
	QueryFunc func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error)
	calls     []string
}

func (m *mockSource) Query(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
	m.mu.Lock()
	m.calls = append(m.calls, fmt.Sprintf("%s/%d", actionKey, windowDays))
	m.mu.Unlock()
	if m.QueryFunc != nil {
		return m.QueryFunc(ctx, actionKey, windowDays)
	}
	return analytics.Metrics{Sessions: 100, Pageviews: 250, AddToCarts: 10, Purchases: 4, Revenue: 400}, nil
}

type countingLimiter struct {
	waits int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	return ctx.Err()
}

func newTestAttributor(source AnalyticsSource) (*Attributor, *countingLimiter, *[]time.Duration) {
	a := NewAttributor(source, Config{MaxAttempts: 3, Backoff: 2 * time.Second}, zerolog.Nop())
	limiter := &countingLimiter{}
	a.limiter = limiter
	slept := &[]time.Duration{}
	a.sleep = func(ctx context.Context, d time.Duration) error {
		*slept = append(*slept, d)
		return ctx.Err()
	}
	return a, limiter, slept
}

func floatPtr(v float64) *float64 {
	return &v
}

func TestNewLimiter_OneQueryPerSecond(t *testing.T) {
	limiter := NewLimiter()
	assert.Equal(t, rate.Limit(1), limiter.Limit())
	assert.Equal(t, 1, limiter.Burst())
}

func TestNewAttributor_Defaults(t *testing.T) {
	a := NewAttributor(&mockSource{}, Config{}, zerolog.Nop())
	assert.Equal(t, DefaultMaxAttempts, a.maxAttempts)
	assert.Equal(t, time.Duration(0), a.backoff)

	a = NewAttributor(&mockSource{}, Config{MaxAttempts: 5, Backoff: -1}, zerolog.Nop())
	assert.Equal(t, 5, a.maxAttempts)
	assert.Equal(t, DefaultBackoff, a.backoff)
}

func TestGetActionAttribution_DerivedMetrics(t *testing.T) {
	a, limiter, _ := newTestAttributor(&mockSource{})

	result, err := a.GetActionAttribution(context.Background(), "act-1", actions.Window28, floatPtr(80))
	require.NoError(t, err)

	assert.Equal(t, "act-1", result.ActionKey)
	assert.Equal(t, actions.Window28, result.WindowDays)
	assert.Equal(t, int64(100), result.Sessions)
	assert.Equal(t, int64(250), result.Pageviews)
	assert.InDelta(t, 0.04, result.ConversionRate, 1e-12)
	assert.InDelta(t, 100.0, result.AverageOrderValue, 1e-12)
	require.NotNil(t, result.RealizedROI)
	assert.InDelta(t, 5.0, *result.RealizedROI, 1e-12)
	assert.False(t, result.FetchedAt.IsZero())
	assert.Equal(t, 1, limiter.waits)
}

func TestGetActionAttribution_RejectsUnknownWindow(t *testing.T) {
	source := &mockSource{}
	a, limiter, _ := newTestAttributor(source)

	_, err := a.GetActionAttribution(context.Background(), "act-1", 30, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported attribution window")
	assert.Empty(t, source.calls)
	assert.Equal(t, 0, limiter.waits)
}

func TestBuildResult_ZeroDenominators(t *testing.T) {
	result := BuildResult("k", 7, analytics.Metrics{}, floatPtr(10), time.Now())
	assert.Equal(t, 0.0, result.ConversionRate)
	assert.Equal(t, 0.0, result.AverageOrderValue)
	require.NotNil(t, result.RealizedROI)
	assert.Equal(t, 0.0, *result.RealizedROI)
}

func TestRealizedROI_UnknownCostIsSentinel(t *testing.T) {
	assert.Nil(t, RealizedROI(500, nil))
	assert.Nil(t, RealizedROI(500, floatPtr(0)))
	assert.Nil(t, RealizedROI(500, floatPtr(-10)))

	roi := RealizedROI(500, floatPtr(100))
	require.NotNil(t, roi)
	assert.Equal(t, 5.0, *roi)
}

func TestGetActionAttribution_RetriesTransient(t *testing.T) {
	attempts := 0
	source := &mockSource{
		QueryFunc: func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
			attempts++
			if attempts < 3 {
				return analytics.Metrics{}, &analytics.QueryError{StatusCode: 503, Transient: true, Message: "unavailable"}
			}
			return analytics.Metrics{Sessions: 10}, nil
		},
	}
	a, limiter, slept := newTestAttributor(source)

	result, err := a.GetActionAttribution(context.Background(), "act-1", actions.Window7, nil)
	require.NoError(t, err)

	assert.Equal(t, int64(10), result.Sessions)
	assert.Nil(t, result.RealizedROI)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, 3, limiter.waits, "every retry passes through the limiter")
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestGetActionAttribution_GivesUpAfterMaxAttempts(t *testing.T) {
	source := &mockSource{
		QueryFunc: func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
			return analytics.Metrics{}, &analytics.QueryError{StatusCode: 500, Transient: true, Message: "boom"}
		},
	}
	a, _, slept := newTestAttributor(source)

	_, err := a.GetActionAttribution(context.Background(), "act-1", actions.Window14, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed after 3 attempts")
	assert.True(t, analytics.IsTransient(err))
	assert.Len(t, source.calls, 3)
	assert.Len(t, *slept, 2)
}

func TestGetActionAttribution_PermanentNotRetried(t *testing.T) {
	source := &mockSource{
		QueryFunc: func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
			return analytics.Metrics{}, &analytics.QueryError{StatusCode: 400, Message: "unknown_dimension_value"}
		},
	}
	a, _, slept := newTestAttributor(source)

	_, err := a.GetActionAttribution(context.Background(), "bad-key", actions.Window7, nil)
	require.Error(t, err)
	assert.Len(t, source.calls, 1)
	assert.Empty(t, *slept)
}

func TestAttributeBatch_PermanentFailureDoesNotAbort(t *testing.T) {
	source := &mockSource{
		QueryFunc: func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
			if actionKey == "act-3" {
				return analytics.Metrics{}, &analytics.QueryError{StatusCode: 400, Message: "unknown key"}
			}
			return analytics.Metrics{Sessions: 50, Purchases: 2, Revenue: 120}, nil
		},
	}
	a, _, _ := newTestAttributor(source)

	requests := make([]Request, 10)
	for i := range requests {
		requests[i] = Request{ActionID: fmt.Sprintf("id-%d", i), ActionKey: fmt.Sprintf("act-%d", i), KnownCost: floatPtr(60)}
	}

	var persisted []string
	batch := a.AttributeBatch(context.Background(), requests, func(o Outcome) error {
		persisted = append(persisted, o.Request.ActionID)
		return nil
	})

	require.Len(t, batch.Outcomes, 10)
	assert.False(t, batch.Cancelled)

	failed := 0
	for _, o := range batch.Outcomes {
		if !o.OK() {
			failed++
			assert.Equal(t, "act-3", o.Request.ActionKey)
			assert.Len(t, o.Failed, 3)
			continue
		}
		require.Len(t, o.Results, 3)
		require.NotNil(t, o.Results[2].RealizedROI)
		assert.Equal(t, 2.0, *o.Results[2].RealizedROI)
	}
	assert.Equal(t, 1, failed)
	assert.Len(t, persisted, 9, "actions with no successful window are not written")
	assert.Equal(t, 30, batch.Latency.Count)
}

func TestAttributeBatch_SequentialWindowOrder(t *testing.T) {
	source := &mockSource{}
	a, _, _ := newTestAttributor(source)

	a.AttributeBatch(context.Background(), []Request{{ActionKey: "a"}, {ActionKey: "b"}}, nil)

	assert.Equal(t, []string{"a/7", "a/14", "a/28", "b/7", "b/14", "b/28"}, source.calls)
}

func TestAttributeBatch_PartialWindowFailure(t *testing.T) {
	source := &mockSource{
		QueryFunc: func(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
			if windowDays == actions.Window14 {
				return analytics.Metrics{}, &analytics.QueryError{StatusCode: 404, Message: "gone"}
			}
			return analytics.Metrics{Sessions: 1}, nil
		},
	}
	a, _, _ := newTestAttributor(source)

	batch := a.AttributeBatch(context.Background(), []Request{{ActionID: "x", ActionKey: "x"}}, nil)

	require.Len(t, batch.Outcomes, 1)
	o := batch.Outcomes[0]
	assert.False(t, o.OK())
	assert.Len(t, o.Results, 2)
	assert.Contains(t, o.Failed, actions.Window14)
}

func TestAttributeBatch_PersistErrorMarksFailure(t *testing.T) {
	a, _, _ := newTestAttributor(&mockSource{})

	batch := a.AttributeBatch(context.Background(), []Request{{ActionID: "x", ActionKey: "x"}}, func(o Outcome) error {
		return errors.New("disk full")
	})

	require.Len(t, batch.Outcomes, 1)
	assert.False(t, batch.Outcomes[0].OK())
	assert.Empty(t, batch.Outcomes[0].Results)
	assert.Len(t, batch.Outcomes[0].Failed, 3)
}

func TestAttributeBatch_CancellationStopsBetweenActions(t *testing.T) {
	source := &mockSource{}
	a, _, _ := newTestAttributor(source)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	requests := []Request{{ActionID: "1", ActionKey: "1"}, {ActionID: "2", ActionKey: "2"}, {ActionID: "3", ActionKey: "3"}}
	var persisted []string
	batch := a.AttributeBatch(ctx, requests, func(o Outcome) error {
		persisted = append(persisted, o.Request.ActionID)
		cancel()
		return nil
	})

	assert.True(t, batch.Cancelled)
	assert.Equal(t, []string{"1"}, persisted)
	assert.Len(t, batch.Outcomes, 1)
	assert.Len(t, source.calls, 3)
}

type exhaustedLimiter struct {
	permits int
	waits   int
}

// Wait mirrors rate.Limiter refusing a permit the deadline cannot reach:
// it fails while ctx.Err() is still nil
func (l *exhaustedLimiter) Wait(ctx context.Context) error {
	l.waits++
	if l.waits > l.permits {
		return errors.New("rate: Wait(n=1) would exceed context deadline")
	}
	return nil
}

func TestAttributeBatch_LimiterRefusalIsCancellation(t *testing.T) {
	source := &mockSource{}
	a, _, _ := newTestAttributor(source)
	a.limiter = &exhaustedLimiter{permits: 4}

	requests := []Request{{ActionID: "a", ActionKey: "a"}, {ActionID: "b", ActionKey: "b"}, {ActionID: "c", ActionKey: "c"}}
	var persisted []string
	batch := a.AttributeBatch(context.Background(), requests, func(o Outcome) error {
		persisted = append(persisted, o.Request.ActionID)
		return nil
	})

	assert.True(t, batch.Cancelled)
	assert.Equal(t, []string{"a"}, persisted)
	require.Len(t, batch.Outcomes, 1, "b is interrupted, c never starts")
	assert.True(t, batch.Outcomes[0].OK())
	assert.Equal(t, []string{"a/7", "a/14", "a/28", "b/7"}, source.calls)
}

func TestGetActionAttribution_LimiterRefusalWrapsErrCancelled(t *testing.T) {
	a, _, _ := newTestAttributor(&mockSource{})
	a.limiter = &exhaustedLimiter{}

	_, err := a.GetActionAttribution(context.Background(), "a", 7, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCancelled))
}

func TestAttributeBatch_DeadlineStopsBeforeUnreachableDispatch(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	source := &mockSource{}
	a := NewAttributor(source, Config{MaxAttempts: 1}, zerolog.Nop())
	a.limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 1)

	// Permits land at 0ms and 100ms; the third would need 200ms
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	requests := []Request{{ActionID: "a", ActionKey: "a"}, {ActionID: "b", ActionKey: "b"}, {ActionID: "c", ActionKey: "c"}}
	persistCalls := 0
	batch := a.AttributeBatch(ctx, requests, func(o Outcome) error {
		persistCalls++
		return nil
	})

	assert.True(t, batch.Cancelled)
	assert.Empty(t, batch.Outcomes, "unattempted actions are not failures")
	assert.Equal(t, 0, persistCalls)
	assert.Equal(t, []string{"a/7", "a/14"}, source.calls)
}

func TestAttributeBatch_RespectsDispatchSpacing(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	// Same limiter shape as production with the interval scaled down 50x
	interval := 20 * time.Millisecond
	a := NewAttributor(&mockSource{}, Config{MaxAttempts: 1}, zerolog.Nop())
	a.limiter = rate.NewLimiter(rate.Every(interval), 1)

	requests := make([]Request, 10)
	for i := range requests {
		requests[i] = Request{ActionKey: fmt.Sprintf("act-%d", i)}
	}

	start := time.Now()
	batch := a.AttributeBatch(context.Background(), requests, nil)
	elapsed := time.Since(start)

	assert.Len(t, batch.Outcomes, 10)
	// 30 dispatches need at least 29 intervals
	assert.GreaterOrEqual(t, elapsed, 29*interval)
}

func TestSummarizeLatencies(t *testing.T) {
	assert.Equal(t, LatencyStats{}, SummarizeLatencies(nil))

	latencies := make([]time.Duration, 0, 100)
	for i := 100; i >= 1; i-- {
		latencies = append(latencies, time.Duration(i)*time.Millisecond)
	}

	stats := SummarizeLatencies(latencies)
	assert.Equal(t, 100, stats.Count)
	assert.InDelta(t, 50.5, stats.MeanMs, 1e-9)
	assert.InDelta(t, 50.0, stats.P50Ms, 1e-9)
	assert.InDelta(t, 95.0, stats.P95Ms, 1e-9)
}
