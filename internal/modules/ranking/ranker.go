// Package ranking orders the action queue. Actions with a measured 28-day
// ROI above the proven threshold form the top tier; everything else is
// ordered by its projected composite score below them.
package ranking

import (
	"sort"

	"github.com/Jgorzitza/hotdash/internal/modules/actions"
	"github.com/Jgorzitza/hotdash/internal/modules/scoring"
)

// DefaultProvenThreshold is the realized 28-day ROI an action must exceed to be proven
const DefaultProvenThreshold = 1.0

// Tier is the ranking tier of an action
type Tier string

const (
	// TierProven - realized 28-day ROI known and above threshold
	TierProven Tier = "proven"
	// TierPrediction - ranked by projected score only
	TierPrediction Tier = "prediction"
)

// RankedAction is one row of the displayed queue
type RankedAction struct {
	scoring.ScoredAction
	Rank        int      `json:"rank"`
	Tier        Tier     `json:"tier"`
	RealizedROI *float64 `json:"realized_roi"`
}

// Rank computes the two-tier ordering of every non-archived action.
// The result depends only on the set of items, never on their input order.
func Rank(items []actions.ActionItem, provenThreshold float64) []RankedAction {
	proven := make([]RankedAction, 0)
	prediction := make([]RankedAction, 0, len(items))

	for _, item := range items {
		if item.Status == actions.StatusArchived {
			continue
		}

		ranked := RankedAction{ScoredAction: scoring.Score(item), Tier: TierPrediction}
		if roi, ok := item.RealizedROI28(); ok {
			v := roi
			ranked.RealizedROI = &v
			if roi > provenThreshold {
				ranked.Tier = TierProven
			}
		}

		if ranked.Tier == TierProven {
			proven = append(proven, ranked)
		} else {
			prediction = append(prediction, ranked)
		}
	}

	sort.SliceStable(proven, func(i, j int) bool {
		a, b := *proven[i].RealizedROI, *proven[j].RealizedROI
		if a != b {
			return a > b
		}
		return scoring.Compare(proven[i].ScoredAction, proven[j].ScoredAction) < 0
	})
	sort.SliceStable(prediction, func(i, j int) bool {
		return scoring.Compare(prediction[i].ScoredAction, prediction[j].ScoredAction) < 0
	})

	ranked := append(proven, prediction...)
	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// Top truncates a ranking to limit entries; limit <= 0 keeps everything
func Top(ranked []RankedAction, limit int) []RankedAction {
	if limit > 0 && len(ranked) > limit {
		return ranked[:limit]
	}
	return ranked
}
