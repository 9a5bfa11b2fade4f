package domain

import "time"

// Run records one pipeline invocation: the snapshot and parameters it was
// computed against, plus summary counts for the dashboard.
type Run struct {
	ID             string    `json:"id"`
	SnapshotDate   time.Time `json:"snapshotDate"`
	WindowDays     int       `json:"windowDays"`
	SegmentVersion string    `json:"segmentVersion"`
	CustomerCount  int       `json:"customerCount"`
	CreatedAt      time.Time `json:"createdAt"`

	// Processing metadata
	Metadata RunMetadata `json:"metadata"`
}

// RunMetadata holds per-stage timing for one run.
type RunMetadata struct {
	TraceID       string `json:"traceId,omitempty"`
	FeaturesMs    int64  `json:"featuresMs"`
	SegmentsMs    int64  `json:"segmentsMs"`
	RiskMs        int64  `json:"riskMs"`
	DecisionsMs   int64  `json:"decisionsMs"`
	TotalMs       int64  `json:"totalMs"`
	EngineVersion string `json:"engineVersion"`
}

// RunRequest is the event payload asking a worker to execute a pipeline
// run. Empty SnapshotDate means "latest transaction date in the set".
type RunRequest struct {
	SnapshotDate string `json:"snapshotDate,omitempty"`
	WindowDays   int    `json:"windowDays,omitempty"`
	RequestID    string `json:"requestId,omitempty"`
}

// RunResult bundles the output tables of one run. All tables are keyed by
// customer ID and sorted by it; the presentation layer reads them as
// immutable snapshots and never writes back.
type RunResult struct {
	Run Run `json:"run"`

	Features  []CustomerFeatures `json:"features"`
	Segments  []SegmentRecord    `json:"segments"`
	Risk      []RiskRecord       `json:"risk"`
	Decisions []DecisionRecord   `json:"decisions"`
}

// CustomerView is the per-customer drilldown joining all derived tables.
type CustomerView struct {
	CustomerID string            `json:"customerId"`
	Features   CustomerFeatures  `json:"features"`
	Segment    SegmentRecord     `json:"segment"`
	Risk       RiskRecord        `json:"risk"`
	Decision   DecisionRecord    `json:"decision"`
}

// Customer returns the drilldown view for one customer, or false when the
// customer has no records in this run. Absence is distinct from zero-valued
// results and must be presented as "no data".
func (r *RunResult) Customer(customerID string) (CustomerView, bool) {
	view := CustomerView{CustomerID: customerID}
	found := false
	for _, f := range r.Features {
		if f.CustomerID == customerID {
			view.Features = f
			found = true
			break
		}
	}
	if !found {
		return CustomerView{}, false
	}
	for _, s := range r.Segments {
		if s.CustomerID == customerID {
			view.Segment = s
			break
		}
	}
	for _, rr := range r.Risk {
		if rr.CustomerID == customerID {
			view.Risk = rr
			break
		}
	}
	for _, d := range r.Decisions {
		if d.CustomerID == customerID {
			view.Decision = d
			break
		}
	}
	return view, true
}
