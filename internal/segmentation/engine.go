// Package segmentation classifies customers into lifecycle stages and
// cohort-relative value segments from their behavioral features.
package segmentation

import (
	"fmt"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Assign maps every customer in the feature set to exactly one lifecycle
// stage and one value segment. Percentile cut points are computed once from
// the complete cohort before any customer is classified, so the partition is
// total, non-overlapping and order-independent.
//
// Cohorts of fewer than two customers fail with ErrEmptyCohort: a percentile
// rank is undefined there and must not be faked.
func Assign(features *domain.FeatureSet, cfg domain.PipelineConfig) ([]domain.SegmentRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(features.Features) < 2 {
		return nil, fmt.Errorf("%w: percentile segmentation requires at least 2 customers, got %d",
			domain.ErrEmptyCohort, len(features.Features))
	}

	percentiles := monetaryPercentiles(features.Features)

	records := make([]domain.SegmentRecord, 0, len(features.Features))
	for _, f := range features.Features {
		stage := lifecycleStage(f.RecencyDays, cfg)
		value := valueSegment(f.Monetary, percentiles[f.CustomerID], cfg)

		records = append(records, domain.SegmentRecord{
			CustomerID:     f.CustomerID,
			LifecycleStage: stage,
			ValueSegment:   value,
			SegmentLabel:   stage + " / " + value,
			SegmentVersion: cfg.SegmentVersion,
		})
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CustomerID < records[j].CustomerID })
	return records, nil
}

// lifecycleStage applies the ordered threshold ladder on recency days.
// First match wins; the final rung is unconditional, so every customer
// lands in exactly one stage.
func lifecycleStage(recencyDays int, cfg domain.PipelineConfig) string {
	switch {
	case recencyDays <= cfg.ActiveMaxDays:
		return domain.StageActive
	case recencyDays <= cfg.AtRiskMaxDays:
		return domain.StageAtRisk
	case recencyDays <= cfg.DormantMaxDays:
		return domain.StageDormant
	default:
		return domain.StageChurned
	}
}

// monetaryPercentiles ranks each customer's window spend within the cohort.
// A customer's percentile is 100 * |{monetary <= mine}| / N, so customers
// with equal spend share the higher rank. The tie rule keeps the partition
// stable under reordering of the input.
func monetaryPercentiles(features []domain.CustomerFeatures) map[string]float64 {
	n := len(features)

	values := make([]float64, n)
	for i, f := range features {
		values[i] = f.Monetary
	}
	sort.Float64s(values)

	percentiles := make(map[string]float64, n)
	for _, f := range features {
		// Count of cohort members with monetary <= this customer's,
		// via the insertion point after the last equal value.
		rank := sort.SearchFloat64s(values, f.Monetary)
		for rank < n && values[rank] == f.Monetary {
			rank++
		}
		percentiles[f.CustomerID] = 100 * float64(rank) / float64(n)
	}
	return percentiles
}

// valueSegment applies the percentile cuts. Cuts are exclusive: a customer
// must rank strictly above the 80th percentile for High, strictly above the
// 40th for Medium, which yields ceil(0.2*N) High customers on cohorts of
// distinct spend. Customers with no window spend are always Low Value
// regardless of rank.
func valueSegment(monetary, percentile float64, cfg domain.PipelineConfig) string {
	if monetary <= 0 {
		return domain.ValueLow
	}
	switch {
	case percentile > cfg.HighValuePercentile:
		return domain.ValueHigh
	case percentile > cfg.MediumValuePercentile:
		return domain.ValueMedium
	default:
		return domain.ValueLow
	}
}
