package risk

import (
	"fmt"
	"math"
	"sort"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Score boundaries for risk levels, inclusive upper bounds.
const (
	lowMaxScore    = 30
	mediumMaxScore = 60
)

// Score aggregates normalized signals into a RiskRecord via the fixed
// weighted sum: 100 * (w_r*recency + w_f*frequency_drop + w_s*spend_drop).
// The score is clamped to [0,100] before leveling to guard against signal
// normalization drift, and rounded to 2 decimals for stable output.
func Score(signals domain.RiskSignals, cfg domain.PipelineConfig) domain.RiskRecord {
	raw := cfg.Weights.Recency*signals.RecencySignal +
		cfg.Weights.FrequencyDrop*signals.FrequencyDropSignal +
		cfg.Weights.SpendDrop*signals.SpendDropSignal

	score := clamp(raw*100, 0, 100)
	score = math.Round(score*100) / 100

	return domain.RiskRecord{
		CustomerID: signals.CustomerID,
		RiskScore:  score,
		RiskLevel:  level(score),
		Signals:    signals,
	}
}

// ScoreAll computes risk records for the whole cohort from its feature set.
// Fails with ErrMissingFeature rather than substituting defaults that would
// misrepresent risk.
func ScoreAll(features *domain.FeatureSet, cfg domain.PipelineConfig) ([]domain.RiskRecord, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	signals, err := SignalsAll(features, cfg)
	if err != nil {
		return nil, err
	}

	records := make([]domain.RiskRecord, len(signals))
	for i, s := range signals {
		records[i] = Score(s, cfg)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].CustomerID < records[j].CustomerID })
	return records, nil
}

// Lookup returns the risk record for a customer.
func Lookup(records []domain.RiskRecord, customerID string) (domain.RiskRecord, error) {
	for _, r := range records {
		if r.CustomerID == customerID {
			return r, nil
		}
	}
	return domain.RiskRecord{}, fmt.Errorf("%w: no risk record for customer %s", domain.ErrMissingFeature, customerID)
}

// level partitions the clamped score range: 0-30 Low, 31-60 Medium,
// 61-100 High.
func level(score float64) string {
	switch {
	case score <= lowMaxScore:
		return domain.RiskLow
	case score <= mediumMaxScore:
		return domain.RiskMedium
	default:
		return domain.RiskHigh
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
