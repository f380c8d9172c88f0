// Package scoring provides the composite score used to rank pending actions.
// Every function here is pure and safe for concurrent use.
package scoring

import (
	"sort"
	"strings"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
)

// =============================================================================
// LOOKUP TABLES
// =============================================================================
// Each table is a closed enum plus a documented default, so every lookup is total.

// Ease multipliers scale the projected impact by how hard the change is
var easeMultipliers = map[actions.Ease]float64{
	actions.EaseSimple: 1.0,
	actions.EaseMedium: 0.7,
	actions.EaseHard:   0.4,
}

// DefaultEaseMultiplier applies to unrecognized ease values
const DefaultEaseMultiplier = 0.5

// Risk penalties grow with tier: none < perf < safety < policy
var riskPenalties = map[actions.RiskTier]float64{
	actions.RiskNone:   0,
	actions.RiskPerf:   2,
	actions.RiskSafety: 5,
	actions.RiskPolicy: 10,
}

// DefaultRiskPenalty applies to unrecognized risk tiers
const DefaultRiskPenalty = 3.0

// freshnessBucket matches a substring of the free-text freshness label.
// Labels come from heterogeneous producers and are never parsed as timestamps.
type freshnessBucket struct {
	substring string
	bonus     float64
}

// Checked in order; first match wins, no match scores 0
var freshnessBuckets = []freshnessBucket{
	{substring: "Real-time", bonus: 10},
	{substring: "24h", bonus: 8},
	{substring: "48-72h", bonus: 5},
}

// EaseMultiplier returns the impact multiplier for an ease tier
func EaseMultiplier(ease actions.Ease) float64 {
	if m, ok := easeMultipliers[ease]; ok {
		return m
	}
	return DefaultEaseMultiplier
}

// RiskPenalty returns the score penalty for a risk tier
func RiskPenalty(tier actions.RiskTier) float64 {
	if p, ok := riskPenalties[tier]; ok {
		return p
	}
	return DefaultRiskPenalty
}

// FreshnessBonus returns the bucketed bonus for a freshness label
func FreshnessBonus(label string) float64 {
	for _, bucket := range freshnessBuckets {
		if strings.Contains(label, bucket.substring) {
			return bucket.bonus
		}
	}
	return 0
}

// =============================================================================
// COMPOSITE SCORE
// =============================================================================

// CalculateActionScore computes the rank score of an action:
//
//	delta * confidence * easeMultiplier + freshnessBonus - riskPenalty
func CalculateActionScore(item actions.ActionItem) float64 {
	baseScore := item.ExpectedImpact.Delta * item.Confidence * EaseMultiplier(item.Ease)
	return baseScore + FreshnessBonus(item.FreshnessLabel) - RiskPenalty(item.RiskTier)
}

// ScoredAction pairs an action with its score components
type ScoredAction struct {
	Item           actions.ActionItem `json:"item"`
	Score          float64            `json:"score"`
	FreshnessBonus float64            `json:"freshness_bonus"`
	RiskPenalty    float64            `json:"risk_penalty"`
}

// Score computes the scored view of a single action
func Score(item actions.ActionItem) ScoredAction {
	return ScoredAction{
		Item:           item,
		Score:          CalculateActionScore(item),
		FreshnessBonus: FreshnessBonus(item.FreshnessLabel),
		RiskPenalty:    RiskPenalty(item.RiskTier),
	}
}

// Compare orders two scored actions for display and returns a negative number
// when a ranks before b. Ties on score fall through to: higher freshness bonus,
// lower risk penalty, earlier creation time, then id.
func Compare(a, b ScoredAction) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	switch {
	case a.FreshnessBonus > b.FreshnessBonus:
		return -1
	case a.FreshnessBonus < b.FreshnessBonus:
		return 1
	}
	switch {
	case a.RiskPenalty < b.RiskPenalty:
		return -1
	case a.RiskPenalty > b.RiskPenalty:
		return 1
	}
	switch {
	case a.Item.CreatedAt.Before(b.Item.CreatedAt):
		return -1
	case a.Item.CreatedAt.After(b.Item.CreatedAt):
		return 1
	}
	return strings.Compare(a.Item.ID, b.Item.ID)
}

// ScoreAll scores and sorts every action without truncation
func ScoreAll(items []actions.ActionItem) []ScoredAction {
	scored := make([]ScoredAction, len(items))
	for i, item := range items {
		scored[i] = Score(item)
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return Compare(scored[i], scored[j]) < 0
	})
	return scored
}

// GetTopActions returns the highest-ranked actions, at most limit of them.
// A non-positive limit returns the full ranking. The input slice is not modified.
func GetTopActions(items []actions.ActionItem, limit int) []ScoredAction {
	scored := ScoreAll(items)
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}
