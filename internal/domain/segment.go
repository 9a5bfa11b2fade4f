package domain

// Lifecycle stages, ordered from most to least engaged.
const (
	StageActive  = "Active"
	StageAtRisk  = "At-Risk"
	StageDormant = "Dormant"
	StageChurned = "Churned"
)

// Value segments, relative to the cohort's monetary distribution.
const (
	ValueHigh   = "High Value"
	ValueMedium = "Medium Value"
	ValueLow    = "Low Value"
)

// SegmentRecord classifies one customer for one run. Derived solely from
// CustomerFeatures; every customer receives exactly one lifecycle stage and
// exactly one value segment.
type SegmentRecord struct {
	CustomerID     string `json:"customerId"`
	LifecycleStage string `json:"lifecycleStage"`
	ValueSegment   string `json:"valueSegment"`

	// SegmentLabel is the concatenation of stage and value segment,
	// e.g. "At-Risk / High Value".
	SegmentLabel string `json:"segmentLabel"`

	// SegmentVersion tags the rule revision that produced this record.
	// Bumped whenever thresholds or cut points change.
	SegmentVersion string `json:"segmentVersion"`
}
