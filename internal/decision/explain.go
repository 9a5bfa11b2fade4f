package decision

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signal levels above which a signal is called out as a driver in the
// explanation text. Explanation aides only, never decision logic.
const (
	explainRecencyThreshold = 0.3
	explainDropThreshold    = 0.2
)

// Explain narrates a decision from its already-computed inputs. It is a
// pure formatting function: every number in the text is taken verbatim from
// the records, preserving a single source of truth.
func Explain(input Input, signals domain.RiskSignals, action domain.ActionRecord) domain.ExplanationRecord {
	var parts []string

	drivers := dominantSignals(input, signals)

	switch input.RiskLevel {
	case domain.RiskHigh, domain.RiskMedium:
		if len(drivers) > 0 {
			parts = append(parts, fmt.Sprintf("%s customer, %s, is classified as %s Risk due to %s.",
				input.LifecycleStage, input.ValueSegment, input.RiskLevel, strings.Join(drivers, " and ")))
		} else {
			parts = append(parts, fmt.Sprintf("%s customer, %s, is classified as %s Risk based on overall behavior.",
				input.LifecycleStage, input.ValueSegment, input.RiskLevel))
		}
	default:
		parts = append(parts, fmt.Sprintf("%s customer, %s, shows stable behavior and is classified as Low Risk.",
			input.LifecycleStage, input.ValueSegment))
	}

	parts = append(parts, fmt.Sprintf("Overall risk score is %.1f out of 100.", input.RiskScore))
	parts = append(parts, fmt.Sprintf("Recommended action: %s (%s priority).",
		action.RecommendedAction, strings.ToLower(action.ActionPriority)))

	return domain.ExplanationRecord{
		CustomerID:          input.CustomerID,
		DecisionExplanation: strings.Join(parts, " "),
	}
}

// dominantSignals names the elevated signals with their concrete values so
// the analyst can see what drove the score.
func dominantSignals(input Input, signals domain.RiskSignals) []string {
	var drivers []string
	if signals.RecencySignal >= explainRecencyThreshold {
		drivers = append(drivers, fmt.Sprintf("%d-day recency", input.RecencyDays))
	}
	if signals.SpendDropSignal >= explainDropThreshold {
		drivers = append(drivers, fmt.Sprintf("%.0f%% spend trend", input.SpendTrend*100))
	}
	if signals.FrequencyDropSignal >= explainDropThreshold {
		drivers = append(drivers, fmt.Sprintf("%.0f%% purchase frequency trend", input.FrequencyTrend*100))
	}
	return drivers
}
