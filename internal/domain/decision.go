package domain

// Action priorities, an ordinal urgency label distinct from risk level.
const (
	PriorityHigh   = "High"
	PriorityMedium = "Medium"
	PriorityLow    = "Low"
)

// ActionMonitor is the catch-all fallback action guaranteeing every
// (risk level, value segment) pair resolves to exactly one action.
const ActionMonitor = "Monitor"

// DecisionRule is one entry in the ordered decision rule table. Rules are
// evaluated top-down against the joined per-customer record; the first rule
// whose predicate holds wins.
type DecisionRule struct {
	ID          string `json:"id"`
	Description string `json:"description"`

	// Expression is a CEL predicate over the decision variables
	// (risk_level, value_segment, lifecycle_stage, risk_score,
	// lifetime_value, recency_days, spend_trend, frequency_trend).
	// Must evaluate to bool.
	Expression string `json:"expression"`

	Action   string `json:"action"`
	Priority string `json:"priority"`
}

// ActionRecord is the recommended business action for one customer.
type ActionRecord struct {
	CustomerID        string `json:"customerId"`
	RecommendedAction string `json:"recommendedAction"`
	ActionPriority    string `json:"actionPriority"`

	// RuleID identifies the matched rule; "fallback" when no rule matched.
	RuleID string `json:"ruleId"`
}

// ROIRecord is the heuristic cost/benefit estimate for a recommended action.
// EstimatedROI may be negative; a negative value is a meaningful signal that
// the action is not cost-justified and is never floored.
type ROIRecord struct {
	CustomerID      string  `json:"customerId"`
	ActionCost      float64 `json:"actionCost"`
	ExpectedBenefit float64 `json:"expectedBenefit"`
	EstimatedROI    float64 `json:"estimatedRoi"`
}

// ExplanationRecord narrates the contributing values behind a decision.
// Explanations are assembled from already-computed records and never
// re-derive or alter a numeric value.
type ExplanationRecord struct {
	CustomerID          string `json:"customerId"`
	DecisionExplanation string `json:"decisionExplanation"`
}

// DecisionRecord joins the decision-stage outputs for presentation.
type DecisionRecord struct {
	CustomerID string `json:"customerId"`

	Action      ActionRecord      `json:"action"`
	ROI         ROIRecord         `json:"roi"`
	Explanation ExplanationRecord `json:"explanation"`
}
