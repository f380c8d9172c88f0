package testing

import (
	"fmt"
	"time"

	"github.com/Jgorzitza/hotdash/internal/clients/analytics"
	"github.com/Jgorzitza/hotdash/internal/modules/actions"
)

// FixtureTime is the creation time of every fixture action
var FixtureTime = time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)

// NewActionFixture returns a valid pending action with the given id
func NewActionFixture(id string) actions.ActionItem {
	return actions.ActionItem{
		ID:               id,
		ActionKey:        id,
		Type:             "seo_fix",
		Target:           "/products/" + id,
		DraftDescription: "Rewrite title tag for " + id,
		Evidence: actions.Evidence{
			RequestIDs:   []string{"req-" + id},
			DatasetLinks: []string{"gsc://queries/" + id},
		},
		ExpectedImpact: actions.ExpectedImpact{Metric: "revenue", Delta: 500, Unit: "USD"},
		Confidence:     0.7,
		Ease:           actions.EaseMedium,
		RiskTier:       actions.RiskNone,
		RollbackPlan:   "Restore previous title tag",
		FreshnessLabel: "24h",
		Agent:          "seo-specialist",
		CreatedAt:      FixtureTime,
		Status:         actions.StatusPending,
	}
}

// NewActionFixtures returns n pending actions with ids act-00, act-01, ...
// Expected impact grows with the index so the fixtures rank in reverse order.
func NewActionFixtures(n int) []actions.ActionItem {
	items := make([]actions.ActionItem, n)
	for i := range items {
		item := NewActionFixture(fmt.Sprintf("act-%02d", i))
		item.ExpectedImpact.Delta = float64(100 * (i + 1))
		item.CreatedAt = FixtureTime.Add(time.Duration(i) * time.Minute)
		items[i] = item
	}
	return items
}

// NewMetricsFixture returns analytics metrics scaled to the window length
func NewMetricsFixture(windowDays int) analytics.Metrics {
	scale := int64(windowDays)
	return analytics.Metrics{
		Sessions:   100 * scale,
		Pageviews:  250 * scale,
		AddToCarts: 10 * scale,
		Purchases:  2 * scale,
		Revenue:    float64(150 * scale),
	}
}
