// Package risk derives normalized disengagement signals from customer
// features and aggregates them into a 0-100 risk score and level.
package risk

import (
	"fmt"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Signals computes the three normalized [0,1] risk signals for one
// customer's features.
//
// Normalization assumptions, both configurable:
//   - recency_days >= RecencySaturationDays (default 180) is maximum
//     recency risk.
//   - a trend decline of TrendDropFloor (default 0.5, i.e. -50%) or worse
//     is maximum trend risk; flat or positive trends carry none.
func Signals(f domain.CustomerFeatures, cfg domain.PipelineConfig) domain.RiskSignals {
	return domain.RiskSignals{
		CustomerID:          f.CustomerID,
		RecencySignal:       normalizeRecency(f.RecencyDays, cfg.RecencySaturationDays),
		FrequencyDropSignal: normalizeDrop(f.FrequencyTrend, cfg.TrendDropFloor),
		SpendDropSignal:     normalizeDrop(f.SpendTrend, cfg.TrendDropFloor),
	}
}

func normalizeRecency(recencyDays, saturationDays int) float64 {
	if recencyDays <= 0 {
		return 0
	}
	if recencyDays >= saturationDays {
		return 1
	}
	return float64(recencyDays) / float64(saturationDays)
}

// normalizeDrop converts a signed trend ratio into drop risk. Only declines
// contribute; the signal saturates once the decline reaches the floor.
func normalizeDrop(trend, floor float64) float64 {
	if trend >= 0 {
		return 0
	}
	drop := -trend / floor
	if drop > 1 {
		return 1
	}
	return drop
}

// SignalsAll computes signals for every customer in the feature set,
// preserving the set's customer order.
func SignalsAll(features *domain.FeatureSet, cfg domain.PipelineConfig) ([]domain.RiskSignals, error) {
	if features == nil || len(features.Features) == 0 {
		return nil, fmt.Errorf("%w: no feature records to score", domain.ErrMissingFeature)
	}
	out := make([]domain.RiskSignals, len(features.Features))
	for i, f := range features.Features {
		out[i] = Signals(f, cfg)
	}
	return out, nil
}
