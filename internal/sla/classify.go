package sla

import (
	"math"

	"caseflow/internal/store"
)

// Classify places elapsed hours against a rule. For warning and on_track
// states remaining is the time left before breach; for breached, overdue is
// the time past it.
func Classify(elapsedHours float64, rule store.SLARule) (state store.SLAState, remaining, overdue float64) {
	switch {
	case elapsedHours >= rule.BreachThresholdHours:
		return store.SLABreached, 0, round(elapsedHours - rule.BreachThresholdHours)
	case elapsedHours >= rule.WarningThresholdHours:
		return store.SLAWarning, round(rule.BreachThresholdHours - elapsedHours), 0
	default:
		return store.SLAOnTrack, round(rule.BreachThresholdHours - elapsedHours), 0
	}
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}
