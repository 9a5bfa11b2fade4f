package domain

// Risk levels partition the 0-100 score range.
const (
	RiskLow    = "Low"
	RiskMedium = "Medium"
	RiskHigh   = "High"
)

// RiskSignals are normalized [0,1] proxies for one dimension of
// disengagement risk each.
type RiskSignals struct {
	CustomerID string `json:"customerId"`

	// RecencySignal rises with days since the last transaction, saturating
	// at the configured recency cap.
	RecencySignal float64 `json:"recencySignal"`

	// FrequencyDropSignal and SpendDropSignal rise as the corresponding
	// trend becomes more negative; 0 for flat or positive trends,
	// saturating at the configured drop floor.
	FrequencyDropSignal float64 `json:"frequencyDropSignal"`
	SpendDropSignal     float64 `json:"spendDropSignal"`
}

// RiskRecord is the aggregate risk assessment for one customer.
type RiskRecord struct {
	CustomerID string `json:"customerId"`

	// RiskScore is the weighted signal sum scaled to [0,100], clamped and
	// rounded to 2 decimals.
	RiskScore float64 `json:"riskScore"`

	// RiskLevel is a deterministic, non-overlapping partition of the score
	// range: <=30 Low, <=60 Medium, else High.
	RiskLevel string `json:"riskLevel"`

	// Signals are retained so explanations never re-derive them.
	Signals RiskSignals `json:"signals"`
}
