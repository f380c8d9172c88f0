// Package actions defines the Growth Action Queue's action record, its
// admission validator, and the persistent action store.
package actions

import (
	"time"

	"github.com/google/uuid"
)

// Ease is the enumerated difficulty tier of an action
type Ease string

const (
	EaseSimple Ease = "simple"
	EaseMedium Ease = "medium"
	EaseHard   Ease = "hard"
)

// Valid reports whether e is one of the enumerated tiers
func (e Ease) Valid() bool {
	switch e {
	case EaseSimple, EaseMedium, EaseHard:
		return true
	}
	return false
}

// RiskTier is the enumerated risk classification of an action.
// Penalty ordering: none < perf < safety < policy.
type RiskTier string

const (
	RiskNone   RiskTier = "none"
	RiskPerf   RiskTier = "perf"
	RiskSafety RiskTier = "safety"
	RiskPolicy RiskTier = "policy"
)

// Valid reports whether r is one of the enumerated tiers
func (r RiskTier) Valid() bool {
	switch r {
	case RiskNone, RiskPerf, RiskSafety, RiskPolicy:
		return true
	}
	return false
}

// Status is the ranking status of an action
type Status string

const (
	// StatusPending - not executed yet, ranked by its projected score
	StatusPending Status = "pending"
	// StatusExecuted - approved and run, awaiting its first successful attribution
	StatusExecuted Status = "executed"
	// StatusAttributed - at least one realized window fetched
	StatusAttributed Status = "attributed"
	// StatusArchived - terminal, excluded from ranking
	StatusArchived Status = "archived"
)

// Attribution lookback windows in days
const (
	Window7  = 7
	Window14 = 14
	Window28 = 28
)

// Windows lists the lookback windows fetched for every executed action
var Windows = []int{Window7, Window14, Window28}

// ValidWindow reports whether days is one of the fixed lookback windows
func ValidWindow(days int) bool {
	return days == Window7 || days == Window14 || days == Window28
}

// Evidence references the source queries and datasets that justify an action
type Evidence struct {
	RequestIDs    []string `json:"request_ids"`
	DatasetLinks  []string `json:"dataset_links,omitempty"`
	TelemetryRefs []string `json:"telemetry_refs,omitempty"`
}

// ExpectedImpact is the projected effect of an action
type ExpectedImpact struct {
	Metric string  `json:"metric"`
	Delta  float64 `json:"delta"`
	Unit   string  `json:"unit"`
}

// AttributionResult is the realized outcome of an action over one trailing window.
// RealizedROI is nil when the action's cost is unknown or zero.
type AttributionResult struct {
	ActionKey         string    `json:"action_key"`
	WindowDays        int       `json:"window_days"`
	Sessions          int64     `json:"sessions"`
	Pageviews         int64     `json:"pageviews"`
	AddToCarts        int64     `json:"add_to_carts"`
	Purchases         int64     `json:"purchases"`
	Revenue           float64   `json:"revenue"`
	ConversionRate    float64   `json:"conversion_rate"`
	AverageOrderValue float64   `json:"average_order_value"`
	RealizedROI       *float64  `json:"realized_roi"`
	FetchedAt         time.Time `json:"fetched_at"`
}

// ActionItem is a single proposed, evidence-backed optimization.
// Projected fields are immutable once inserted; only Realized and the
// lifecycle fields change afterwards.
type ActionItem struct {
	CreatedAt        time.Time      `json:"created_at"`
	ExecutedAt       *time.Time     `json:"executed_at,omitempty"`
	ExecutionCost    *float64       `json:"execution_cost,omitempty"`
	ID               string         `json:"id"`
	ActionKey        string         `json:"action_key"`
	Type             string         `json:"type"`
	Target           string         `json:"target"`
	DraftDescription string         `json:"draft_description"`
	RollbackPlan     string         `json:"rollback_plan"`
	FreshnessLabel   string         `json:"freshness_label"`
	Agent            string         `json:"agent"`
	Ease             Ease           `json:"ease"`
	RiskTier         RiskTier       `json:"risk_tier"`
	Status           Status         `json:"status"`
	Evidence         Evidence       `json:"evidence"`
	ExpectedImpact   ExpectedImpact `json:"expected_impact"`
	Confidence       float64        `json:"confidence"`
	CanExecute       bool           `json:"can_execute"`
	// Realized holds one result per lookback window, keyed by window days
	Realized map[int]AttributionResult `json:"realized,omitempty"`
}

// NewID returns a fresh opaque action id
func NewID() string {
	return uuid.New().String()
}

// Key returns the analytics dimension value used to attribute this action
func (a *ActionItem) Key() string {
	if a.ActionKey != "" {
		return a.ActionKey
	}
	return a.ID
}

// RealizedROI28 returns the realized 28-day ROI, if one is known
func (a *ActionItem) RealizedROI28() (float64, bool) {
	if a.Realized == nil {
		return 0, false
	}
	result, ok := a.Realized[Window28]
	if !ok || result.RealizedROI == nil {
		return 0, false
	}
	return *result.RealizedROI, true
}

// EligibleForAttribution reports whether the nightly job should fetch realized
// results for this action: executed at least minAge before now and not archived.
func (a *ActionItem) EligibleForAttribution(now time.Time, minAge time.Duration) bool {
	if a.Status != StatusExecuted && a.Status != StatusAttributed {
		return false
	}
	if a.ExecutedAt == nil {
		return false
	}
	return !a.ExecutedAt.After(now.Add(-minAge))
}
