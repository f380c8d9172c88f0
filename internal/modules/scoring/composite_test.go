package scoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

func makeItem(id string, delta, confidence float64, ease actions.Ease, risk actions.RiskTier, freshness string, createdOffset time.Duration) actions.ActionItem {
	return actions.ActionItem{
		ID:             id,
		Type:           "seo_fix",
		Target:         "/page/" + id,
		ExpectedImpact: actions.ExpectedImpact{Metric: "revenue", Delta: delta, Unit: "USD"},
		Confidence:     confidence,
		Ease:           ease,
		RiskTier:       risk,
		FreshnessLabel: freshness,
		CreatedAt:      baseTime.Add(createdOffset),
	}
}

func TestEaseMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, EaseMultiplier(actions.EaseSimple))
	assert.Equal(t, 0.7, EaseMultiplier(actions.EaseMedium))
	assert.Equal(t, 0.4, EaseMultiplier(actions.EaseHard))
	assert.Equal(t, 0.5, EaseMultiplier("unknown"))
	assert.Equal(t, 0.5, EaseMultiplier(""))
}

func TestRiskPenalty(t *testing.T) {
	assert.Equal(t, 0.0, RiskPenalty(actions.RiskNone))
	assert.Equal(t, 2.0, RiskPenalty(actions.RiskPerf))
	assert.Equal(t, 5.0, RiskPenalty(actions.RiskSafety))
	assert.Equal(t, 10.0, RiskPenalty(actions.RiskPolicy))
	assert.Equal(t, 3.0, RiskPenalty("legal"))

	// Penalty ordering none < perf < safety < policy
	assert.Less(t, RiskPenalty(actions.RiskNone), RiskPenalty(actions.RiskPerf))
	assert.Less(t, RiskPenalty(actions.RiskPerf), RiskPenalty(actions.RiskSafety))
	assert.Less(t, RiskPenalty(actions.RiskSafety), RiskPenalty(actions.RiskPolicy))
}

func TestFreshnessBonus(t *testing.T) {
	tests := []struct {
		label string
		bonus float64
	}{
		{"Real-time", 10},
		{"Real-time (GA4 stream)", 10},
		{"24h", 8},
		{"last 24h", 8},
		{"48-72h", 5},
		{"weekly", 0},
		{"", 0},
		{"real-time", 0}, // substring match is case sensitive
		{"2024-10-01T00:00:00Z", 0},
	}

	for _, tt := range tests {
		t.Run(tt.label, func(t *testing.T) {
			assert.Equal(t, tt.bonus, FreshnessBonus(tt.label))
		})
	}
}

func TestCalculateActionScore(t *testing.T) {
	item := makeItem("a", 100, 0.5, actions.EaseMedium, actions.RiskPerf, "24h", 0)
	// 100 * 0.5 * 0.7 + 8 - 2
	assert.InDelta(t, 41.0, CalculateActionScore(item), 1e-9)
}

func TestCalculateActionScore_Pure(t *testing.T) {
	item := makeItem("a", 250, 0.6, actions.EaseHard, actions.RiskSafety, "Real-time", 0)
	first := CalculateActionScore(item)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, CalculateActionScore(item))
	}
}

func TestCalculateActionScore_ConfidenceMonotonic(t *testing.T) {
	low := makeItem("a", 80, 0.5, actions.EaseSimple, actions.RiskNone, "48-72h", 0)
	high := low
	high.Confidence = 1.0

	assert.Greater(t, CalculateActionScore(high), CalculateActionScore(low))
}

func TestGetTopActions_LimitAndOrder(t *testing.T) {
	items := make([]actions.ActionItem, 0, 20)
	for i := 0; i < 20; i++ {
		items = append(items, makeItem(fmt.Sprintf("item-%02d", i), float64(i*37%50), 0.9, actions.EaseSimple, actions.RiskNone, "24h", time.Duration(i)*time.Minute))
	}

	top := GetTopActions(items, 5)
	require.Len(t, top, 5)
	for i := 1; i < len(top); i++ {
		assert.GreaterOrEqual(t, top[i-1].Score, top[i].Score)
	}

	assert.Len(t, GetTopActions(items, 100), 20)
	assert.Len(t, GetTopActions(items, 0), 20)
	assert.Empty(t, GetTopActions(nil, 5))
}

func TestGetTopActions_DoesNotMutateInput(t *testing.T) {
	items := []actions.ActionItem{
		makeItem("low", 1, 1, actions.EaseSimple, actions.RiskNone, "", 0),
		makeItem("high", 100, 1, actions.EaseSimple, actions.RiskNone, "", 0),
	}

	top := GetTopActions(items, 2)

	assert.Equal(t, "high", top[0].Item.ID)
	assert.Equal(t, "low", items[0].ID)
}

func TestGetTopActions_TieBreakFreshness(t *testing.T) {
	// Both score 20: 12*1*1 + 8 - 0 vs 10*1*1 + 10 - 0
	stale := makeItem("stale", 12, 1, actions.EaseSimple, actions.RiskNone, "24h", 0)
	fresh := makeItem("fresh", 10, 1, actions.EaseSimple, actions.RiskNone, "Real-time", time.Hour)

	top := GetTopActions([]actions.ActionItem{stale, fresh}, 2)

	require.Equal(t, top[0].Score, top[1].Score)
	assert.Equal(t, "fresh", top[0].Item.ID)
}

func TestGetTopActions_TieBreakRisk(t *testing.T) {
	// Same freshness; both score 18: 20 - 2 vs 23 - 5
	perf := makeItem("perf", 20, 1, actions.EaseSimple, actions.RiskPerf, "", time.Hour)
	safety := makeItem("safety", 23, 1, actions.EaseSimple, actions.RiskSafety, "", 0)

	top := GetTopActions([]actions.ActionItem{safety, perf}, 2)

	require.Equal(t, top[0].Score, top[1].Score)
	assert.Equal(t, "perf", top[0].Item.ID)
}

func TestGetTopActions_TieBreakCreatedAt(t *testing.T) {
	later := makeItem("later", 50, 1, actions.EaseSimple, actions.RiskNone, "24h", 2*time.Hour)
	earlier := makeItem("earlier", 50, 1, actions.EaseSimple, actions.RiskNone, "24h", time.Hour)
	earliest := makeItem("earliest", 50, 1, actions.EaseSimple, actions.RiskNone, "24h", 0)

	// Result must not depend on input order
	orders := [][]actions.ActionItem{
		{later, earlier, earliest},
		{earliest, later, earlier},
		{earlier, earliest, later},
	}
	for _, input := range orders {
		top := GetTopActions(input, 3)
		assert.Equal(t, []string{"earliest", "earlier", "later"}, []string{top[0].Item.ID, top[1].Item.ID, top[2].Item.ID})
	}
}

func TestCompare_IdentityIsZero(t *testing.T) {
	item := Score(makeItem("same", 10, 1, actions.EaseSimple, actions.RiskNone, "", 0))
	assert.Equal(t, 0, Compare(item, item))
}
