// Package domain defines the core types and interfaces for Kestrel.
package domain

import "time"

// CustomerFeatures holds per-customer behavioral features computed as of a
// snapshot date. One record per customer with at least one transaction;
// customers with no transactions are absent, which downstream stages must
// treat as "no feature basis" rather than zero.
type CustomerFeatures struct {
	CustomerID string `json:"customerId"`

	// RecencyDays is whole days between the snapshot date and the
	// customer's most recent transaction.
	RecencyDays int `json:"recencyDays"`

	// Frequency and Monetary cover the current trailing window only.
	Frequency int     `json:"frequency"`
	Monetary  float64 `json:"monetary"`

	// LifetimeValue is the all-time spend, unbounded window.
	LifetimeValue float64 `json:"lifetimeValue"`

	// SpendTrend and FrequencyTrend are signed ratios comparing the current
	// trailing window against the immediately preceding window of equal
	// length: (current - prior) / prior. Defined as 0 when the prior window
	// value is 0.
	SpendTrend     float64 `json:"spendTrend"`
	FrequencyTrend float64 `json:"frequencyTrend"`
}

// FeatureSet is the keyed output table of the feature engine for one run.
type FeatureSet struct {
	SnapshotDate time.Time          `json:"snapshotDate"`
	WindowDays   int                `json:"windowDays"`
	Features     []CustomerFeatures `json:"features"` // sorted by CustomerID
}

// Lookup returns the features for a customer, or false if the customer has
// no feature basis in this run.
func (s *FeatureSet) Lookup(customerID string) (CustomerFeatures, bool) {
	for _, f := range s.Features {
		if f.CustomerID == customerID {
			return f, true
		}
	}
	return CustomerFeatures{}, false
}
