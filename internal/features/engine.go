// Package features computes per-customer RFM and trend features as of a
// snapshot date. All computation is a pure function of the transaction set
// and the pipeline configuration.
package features

import (
	"fmt"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// window metric accumulator for one customer.
type windowMetrics struct {
	spend float64
	count int
}

// ResolveSnapshot determines the as-of date for a run. An explicit snapshot
// in the configuration wins; otherwise the latest transaction date is used.
func ResolveSnapshot(txs []*domain.Transaction, cfg domain.PipelineConfig) (time.Time, error) {
	if !cfg.SnapshotDate.IsZero() {
		return cfg.SnapshotDate.UTC(), nil
	}
	if len(txs) == 0 {
		return time.Time{}, fmt.Errorf("%w: cannot infer snapshot date from empty transaction set", domain.ErrInvalidSnapshot)
	}
	latest := txs[0].Date
	for _, tx := range txs[1:] {
		if tx.Date.After(latest) {
			latest = tx.Date
		}
	}
	return latest.UTC(), nil
}

// Compute produces one CustomerFeatures record per customer with at least
// one transaction. The snapshot date must not precede any transaction: the
// pipeline refuses lookahead across the snapshot boundary rather than
// silently excluding data.
func Compute(txs []*domain.Transaction, cfg domain.PipelineConfig) (*domain.FeatureSet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	snapshot, err := ResolveSnapshot(txs, cfg)
	if err != nil {
		return nil, err
	}

	for _, tx := range txs {
		if tx.Date.After(snapshot) {
			return nil, fmt.Errorf("%w: transaction %s dated %s postdates snapshot %s",
				domain.ErrInvalidSnapshot, tx.ID,
				tx.Date.Format("2006-01-02"), snapshot.Format("2006-01-02"))
		}
		if tx.CustomerID == "" {
			return nil, fmt.Errorf("%w: transaction %s has no customer", domain.ErrInvalidTransaction, tx.ID)
		}
		if tx.Amount < 0 {
			return nil, fmt.Errorf("%w: transaction %s has negative amount %.2f", domain.ErrInvalidTransaction, tx.ID, tx.Amount)
		}
	}

	// Current window (snapshot - window, snapshot], prior window of equal
	// length immediately preceding it.
	currentStart := snapshot.AddDate(0, 0, -cfg.WindowDays)
	priorStart := snapshot.AddDate(0, 0, -2*cfg.WindowDays)

	lastTx := make(map[string]time.Time)
	lifetime := make(map[string]float64)
	current := make(map[string]*windowMetrics)
	prior := make(map[string]*windowMetrics)

	for _, tx := range txs {
		id := tx.CustomerID

		if last, ok := lastTx[id]; !ok || tx.Date.After(last) {
			lastTx[id] = tx.Date
		}
		lifetime[id] += tx.Amount

		switch {
		case tx.Date.After(currentStart):
			accumulate(current, id, tx.Amount)
		case tx.Date.After(priorStart):
			accumulate(prior, id, tx.Amount)
		}
	}

	out := make([]domain.CustomerFeatures, 0, len(lastTx))
	for id, last := range lastTx {
		f := domain.CustomerFeatures{
			CustomerID:    id,
			RecencyDays:   wholeDays(last, snapshot),
			LifetimeValue: lifetime[id],
		}

		cur := current[id]
		prev := prior[id]
		if cur != nil {
			f.Frequency = cur.count
			f.Monetary = cur.spend
		}
		f.SpendTrend = trendRatio(metricSpend(cur), metricSpend(prev))
		f.FrequencyTrend = trendRatio(float64(metricCount(cur)), float64(metricCount(prev)))

		out = append(out, f)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })

	return &domain.FeatureSet{
		SnapshotDate: snapshot,
		WindowDays:   cfg.WindowDays,
		Features:     out,
	}, nil
}

func accumulate(m map[string]*windowMetrics, id string, amount float64) {
	w := m[id]
	if w == nil {
		w = &windowMetrics{}
		m[id] = w
	}
	w.spend += amount
	w.count++
}

func metricSpend(w *windowMetrics) float64 {
	if w == nil {
		return 0
	}
	return w.spend
}

func metricCount(w *windowMetrics) int {
	if w == nil {
		return 0
	}
	return w.count
}

// trendRatio is the signed ratio (current - prior) / prior. A zero prior
// period yields 0 rather than a division artifact; this is the documented
// zero-denominator policy for trends.
func trendRatio(current, prior float64) float64 {
	if prior == 0 {
		return 0
	}
	return (current - prior) / prior
}

// wholeDays truncates the span between two instants to whole days.
func wholeDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}
