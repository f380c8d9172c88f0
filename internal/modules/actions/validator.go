package actions

import (
	"fmt"
	"math"
	"strings"
)

// ValidationResult is the outcome of admission validation.
// Errors lists every violated invariant, not just the first.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationError is returned by the submission path when an item is rejected
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid action item: %s", strings.Join(e.Errors, "; "))
}

// ValidateActionItem checks the structural invariants an action must satisfy
// before it may enter the queue. Pure function of the candidate record.
func ValidateActionItem(item ActionItem) ValidationResult {
	errs := make([]string, 0)

	if isBlank(item.Type) {
		errs = append(errs, "type is required")
	}
	if isBlank(item.Target) {
		errs = append(errs, "target is required")
	}
	if isBlank(item.DraftDescription) {
		errs = append(errs, "draft_description is required")
	}
	if !hasReference(item.Evidence.RequestIDs) {
		errs = append(errs, "evidence.request_ids must contain at least one reference")
	}
	if math.IsNaN(item.Confidence) || item.Confidence < 0 || item.Confidence > 1 {
		errs = append(errs, fmt.Sprintf("confidence must be within [0, 1], got %v", item.Confidence))
	}
	if !item.Ease.Valid() {
		errs = append(errs, fmt.Sprintf("ease must be one of simple, medium, hard, got %q", item.Ease))
	}
	if !item.RiskTier.Valid() {
		errs = append(errs, fmt.Sprintf("risk_tier must be one of none, perf, safety, policy, got %q", item.RiskTier))
	}
	if isBlank(item.RollbackPlan) {
		errs = append(errs, "rollback_plan is required")
	}
	if isBlank(item.FreshnessLabel) {
		errs = append(errs, "freshness_label is required")
	}

	return ValidationResult{
		Valid:  len(errs) == 0,
		Errors: errs,
	}
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func hasReference(refs []string) bool {
	for _, ref := range refs {
		if !isBlank(ref) {
			return true
		}
	}
	return false
}
