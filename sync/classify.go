// ABOUTME: Stage classification of CRM deals against a configured allowlist
// ABOUTME: Matches stable stage ids exactly; display names are never compared
package sync

import "github.com/harperreed/leadsync/models"

// StageAllowlist is a set of stage ids that count as conversions.
type StageAllowlist map[string]struct{}

// NewStageAllowlist builds an allowlist from ids. Matching is case-sensitive.
func NewStageAllowlist(ids []string) StageAllowlist {
	a := make(StageAllowlist, len(ids))
	for _, id := range ids {
		a[id] = struct{}{}
	}
	return a
}

// IsConversionStage reports whether deal sits in an allowlisted stage.
func (a StageAllowlist) IsConversionStage(deal models.Deal) bool {
	if deal.StageID == "" {
		return false
	}
	_, ok := a[deal.StageID]
	return ok
}

// Classify splits deals into conversion candidates and the number skipped.
func (a StageAllowlist) Classify(deals []models.Deal) (candidates []models.Deal, skipped int) {
	for _, d := range deals {
		if a.IsConversionStage(d) {
			candidates = append(candidates, d)
		} else {
			skipped++
		}
	}
	return candidates, skipped
}
