package decision

import (
	"math"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// EstimateROI produces the heuristic cost/benefit estimate for a
// recommended action. Costs are fixed per action type; the expected benefit
// is lifetime_value * recovery_rate for that action. The ROI is benefit
// minus cost and is deliberately not clamped: a negative ROI tells the
// analyst the action is not cost-justified.
func (e *Engine) EstimateROI(action domain.ActionRecord, lifetimeValue float64) domain.ROIRecord {
	if lifetimeValue < 0 {
		lifetimeValue = 0
	}

	cost, ok := e.costs[action.RecommendedAction]
	if !ok {
		cost = domain.DefaultActionCost
	}

	rate, ok := e.recovery[action.RecommendedAction]
	if !ok {
		rate = domain.DefaultRecoveryRate
	}

	benefit := round2(lifetimeValue * rate)
	return domain.ROIRecord{
		CustomerID:      action.CustomerID,
		ActionCost:      cost,
		ExpectedBenefit: benefit,
		EstimatedROI:    round2(benefit - cost),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
