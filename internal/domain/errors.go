package domain

import "errors"

// Pipeline error kinds. All stage failures wrap one of these sentinels so
// callers can classify with errors.Is. Errors are raised at the stage
// boundary where detected and never retried: the computation is
// deterministic, so an identical rerun would fail identically.
var (
	// ErrMissingFeature: a required upstream record is absent for a
	// customer that a later stage expects.
	ErrMissingFeature = errors.New("missing feature record")

	// ErrInvalidSnapshot: the snapshot date precedes transaction data.
	ErrInvalidSnapshot = errors.New("invalid snapshot date")

	// ErrInvalidConfiguration: weights not summing to 1.0, negative or
	// unordered thresholds, unordered percentile cuts.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrEmptyCohort: percentile segmentation is undefined on cohorts of
	// fewer than two customers.
	ErrEmptyCohort = errors.New("empty cohort")

	// ErrInvalidTransaction: canonical data violated the ingestion
	// contract (defense in depth; the core trusts but verifies).
	ErrInvalidTransaction = errors.New("invalid transaction")
)
