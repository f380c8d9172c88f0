package testing

import (
	"context"
	"fmt"
	"sync"

	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
)

// MockAnalyticsSource is an in-memory analytics collaborator for testing.
// Unconfigured queries return NewMetricsFixture for the window.
type MockAnalyticsSource struct {
	mu      sync.Mutex
	metrics map[string]analytics.Metrics
	errors  map[string]error
	queries []string
}

// NewMockAnalyticsSource creates a new mock analytics source
func NewMockAnalyticsSource() *MockAnalyticsSource {
	return &MockAnalyticsSource{
		metrics: make(map[string]analytics.Metrics),
		errors:  make(map[string]error),
	}
}

func queryKey(actionKey string, windowDays int) string {
	return fmt.Sprintf("%s/%d", actionKey, windowDays)
}

// SetMetrics sets the metrics returned for one action and window
func (m *MockAnalyticsSource) SetMetrics(actionKey string, windowDays int, metrics analytics.Metrics) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.metrics[queryKey(actionKey, windowDays)] = metrics
}

// SetError makes every query for one action and window fail with err
func (m *MockAnalyticsSource) SetError(actionKey string, windowDays int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[queryKey(actionKey, windowDays)] = err
}

// Query implements the analytics source contract
func (m *MockAnalyticsSource) Query(ctx context.Context, actionKey string, windowDays int) (analytics.Metrics, error) {
	if err := ctx.Err(); err != nil {
		return analytics.Metrics{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := queryKey(actionKey, windowDays)
	m.queries = append(m.queries, key)

	if err, ok := m.errors[key]; ok {
		return analytics.Metrics{}, err
	}
	if metrics, ok := m.metrics[key]; ok {
		return metrics, nil
	}
	return NewMetricsFixture(windowDays), nil
}

// Queries returns every query made so far as "actionKey/windowDays"
func (m *MockAnalyticsSource) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}
