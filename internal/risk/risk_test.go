package risk

import (
	"errors"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

func TestSignalsNormalization(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()

	tests := []struct {
		name     string
		features domain.CustomerFeatures
		want     domain.RiskSignals
	}{
		{
			name:     "FreshCustomerNoRisk",
			features: domain.CustomerFeatures{CustomerID: "c1", RecencyDays: 0, SpendTrend: 0.2, FrequencyTrend: 0.1},
			want:     domain.RiskSignals{CustomerID: "c1", RecencySignal: 0, FrequencyDropSignal: 0, SpendDropSignal: 0},
		},
		{
			name:     "RecencySaturates",
			features: domain.CustomerFeatures{CustomerID: "c2", RecencyDays: 200},
			want:     domain.RiskSignals{CustomerID: "c2", RecencySignal: 1},
		},
		{
			name:     "RecencyLinearBelowSaturation",
			features: domain.CustomerFeatures{CustomerID: "c3", RecencyDays: 90},
			want:     domain.RiskSignals{CustomerID: "c3", RecencySignal: 0.5},
		},
		{
			name:     "DropSaturatesAtFloor",
			features: domain.CustomerFeatures{CustomerID: "c4", SpendTrend: -0.8, FrequencyTrend: -0.5},
			want:     domain.RiskSignals{CustomerID: "c4", SpendDropSignal: 1, FrequencyDropSignal: 1},
		},
		{
			name:     "PartialDrop",
			features: domain.CustomerFeatures{CustomerID: "c5", SpendTrend: -0.25, FrequencyTrend: -0.1},
			want:     domain.RiskSignals{CustomerID: "c5", SpendDropSignal: 0.5, FrequencyDropSignal: 0.2},
		},
		{
			name:     "GrowthCarriesNoDropRisk",
			features: domain.CustomerFeatures{CustomerID: "c6", SpendTrend: 1.5, FrequencyTrend: 0.0},
			want:     domain.RiskSignals{CustomerID: "c6"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Signals(tt.features, cfg)
			if got != tt.want {
				t.Errorf("Signals(%+v) = %+v, want %+v", tt.features, got, tt.want)
			}
		})
	}
}

func TestScoreWeightedSum(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()

	// recency 200 days saturates to 1.0; -30% spend over a 0.5 floor is
	// 0.6; -10% frequency is 0.2. Weighted: 0.40 + 0.05 + 0.21 = 0.66.
	f := domain.CustomerFeatures{
		CustomerID:     "c1",
		RecencyDays:    200,
		SpendTrend:     -0.30,
		FrequencyTrend: -0.10,
	}

	rec := Score(Signals(f, cfg), cfg)
	if rec.RiskScore != 66 {
		t.Errorf("expected score 66, got %.2f", rec.RiskScore)
	}
	if rec.RiskLevel != domain.RiskHigh {
		t.Errorf("expected %s, got %s", domain.RiskHigh, rec.RiskLevel)
	}
}

func TestScoreLevels(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()

	tests := []struct {
		name    string
		signals domain.RiskSignals
		score   float64
		level   string
	}{
		{
			name:    "NoSignalsIsZeroLow",
			signals: domain.RiskSignals{CustomerID: "c1"},
			score:   0,
			level:   domain.RiskLow,
		},
		{
			name:    "ExactlyThirtyIsLow",
			signals: domain.RiskSignals{CustomerID: "c2", RecencySignal: 0.75},
			score:   30,
			level:   domain.RiskLow,
		},
		{
			name:    "JustAboveThirtyIsMedium",
			signals: domain.RiskSignals{CustomerID: "c3", RecencySignal: 0.75, FrequencyDropSignal: 0.04},
			score:   31,
			level:   domain.RiskMedium,
		},
		{
			name:    "ExactlySixtyIsMedium",
			signals: domain.RiskSignals{CustomerID: "c4", RecencySignal: 1, FrequencyDropSignal: 0.8},
			score:   60,
			level:   domain.RiskMedium,
		},
		{
			name:    "AboveSixtyIsHigh",
			signals: domain.RiskSignals{CustomerID: "c5", RecencySignal: 1, FrequencyDropSignal: 0.8, SpendDropSignal: 0.1},
			score:   63.5,
			level:   domain.RiskHigh,
		},
		{
			name:    "AllSignalsSaturatedIsHundred",
			signals: domain.RiskSignals{CustomerID: "c6", RecencySignal: 1, FrequencyDropSignal: 1, SpendDropSignal: 1},
			score:   100,
			level:   domain.RiskHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Score(tt.signals, cfg)
			if rec.RiskScore != tt.score {
				t.Errorf("expected score %.2f, got %.2f", tt.score, rec.RiskScore)
			}
			if rec.RiskLevel != tt.level {
				t.Errorf("expected level %s, got %s", tt.level, rec.RiskLevel)
			}
		})
	}
}

func TestScoreAll(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()

	set := &domain.FeatureSet{
		SnapshotDate: time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
		WindowDays:   90,
		Features: []domain.CustomerFeatures{
			{CustomerID: "c-b", RecencyDays: 10},
			{CustomerID: "c-a", RecencyDays: 250, SpendTrend: -0.9},
		},
	}

	records, err := ScoreAll(set, cfg)
	if err != nil {
		t.Fatalf("ScoreAll failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].CustomerID != "c-a" || records[1].CustomerID != "c-b" {
		t.Errorf("records not sorted by customer ID: %s, %s",
			records[0].CustomerID, records[1].CustomerID)
	}

	for _, r := range records {
		if r.RiskScore < 0 || r.RiskScore > 100 {
			t.Errorf("%s: score %.2f outside [0,100]", r.CustomerID, r.RiskScore)
		}
	}
}

func TestScoreAllEmptySet(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()

	_, err := ScoreAll(&domain.FeatureSet{}, cfg)
	if !errors.Is(err, domain.ErrMissingFeature) {
		t.Errorf("expected ErrMissingFeature, got %v", err)
	}
}

func TestScoreAllInvalidWeights(t *testing.T) {
	cfg := domain.DefaultPipelineConfig()
	cfg.Weights.Recency = 0.9 // sum now exceeds 1.0

	set := &domain.FeatureSet{
		Features: []domain.CustomerFeatures{{CustomerID: "c1"}},
	}

	_, err := ScoreAll(set, cfg)
	if !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	records := []domain.RiskRecord{
		{CustomerID: "c1", RiskScore: 10},
		{CustomerID: "c2", RiskScore: 70},
	}

	rec, err := Lookup(records, "c2")
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if rec.RiskScore != 70 {
		t.Errorf("expected score 70, got %.2f", rec.RiskScore)
	}

	_, err = Lookup(records, "missing")
	if !errors.Is(err, domain.ErrMissingFeature) {
		t.Errorf("expected ErrMissingFeature, got %v", err)
	}
}
