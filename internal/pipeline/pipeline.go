// Package pipeline orchestrates the analytical decision pipeline:
// features, segmentation, risk scoring, and decisioning, in a strict
// dependency chain. A run either produces a complete set of derived records
// for every eligible customer or fails with the offending stage named;
// there is no partial-success mode.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/opensource-finance/kestrel/internal/decision"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/features"
	"github.com/opensource-finance/kestrel/internal/risk"
	"github.com/opensource-finance/kestrel/internal/segmentation"
)

// EngineVersion identifies the pipeline revision in run metadata.
const EngineVersion = "1.0.0"

var tracer = otel.Tracer("kestrel-pipeline")

// decisionWorkers bounds the per-customer decision evaluation fan-out.
// Customers are independent, so order of evaluation cannot affect results.
const decisionWorkers = 8

// Run executes the full pipeline over a transaction set. The same
// transactions, snapshot date and configuration always regenerate identical
// output tables.
func Run(ctx context.Context, txs []*domain.Transaction, cfg domain.PipelineConfig) (*domain.RunResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()

	start := time.Now()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	meta := domain.RunMetadata{EngineVersion: EngineVersion}

	// Feature engineering
	stageStart := time.Now()
	featureSet, err := runFeatures(ctx, txs, cfg)
	if err != nil {
		return nil, fmt.Errorf("features stage: %w", err)
	}
	meta.FeaturesMs = time.Since(stageStart).Milliseconds()

	// Segmentation and risk both depend only on features.
	stageStart = time.Now()
	segments, err := runSegmentation(ctx, featureSet, cfg)
	if err != nil {
		return nil, fmt.Errorf("segmentation stage: %w", err)
	}
	meta.SegmentsMs = time.Since(stageStart).Milliseconds()

	stageStart = time.Now()
	riskRecords, err := runRisk(ctx, featureSet, cfg)
	if err != nil {
		return nil, fmt.Errorf("risk stage: %w", err)
	}
	meta.RiskMs = time.Since(stageStart).Milliseconds()

	// Decisioning joins segment and risk outputs.
	stageStart = time.Now()
	decisions, err := runDecisions(ctx, featureSet, segments, riskRecords, cfg)
	if err != nil {
		return nil, fmt.Errorf("decision stage: %w", err)
	}
	meta.DecisionsMs = time.Since(stageStart).Milliseconds()
	meta.TotalMs = time.Since(start).Milliseconds()

	return &domain.RunResult{
		Run: domain.Run{
			ID:             uuid.New().String(),
			SnapshotDate:   featureSet.SnapshotDate,
			WindowDays:     cfg.WindowDays,
			SegmentVersion: cfg.SegmentVersion,
			CustomerCount:  len(featureSet.Features),
			CreatedAt:      time.Now().UTC(),
			Metadata:       meta,
		},
		Features:  featureSet.Features,
		Segments:  segments,
		Risk:      riskRecords,
		Decisions: decisions,
	}, nil
}

func runFeatures(ctx context.Context, txs []*domain.Transaction, cfg domain.PipelineConfig) (*domain.FeatureSet, error) {
	_, span := tracer.Start(ctx, "pipeline.features")
	defer span.End()
	return features.Compute(txs, cfg)
}

func runSegmentation(ctx context.Context, fs *domain.FeatureSet, cfg domain.PipelineConfig) ([]domain.SegmentRecord, error) {
	_, span := tracer.Start(ctx, "pipeline.segmentation")
	defer span.End()
	return segmentation.Assign(fs, cfg)
}

func runRisk(ctx context.Context, fs *domain.FeatureSet, cfg domain.PipelineConfig) ([]domain.RiskRecord, error) {
	_, span := tracer.Start(ctx, "pipeline.risk")
	defer span.End()
	return risk.ScoreAll(fs, cfg)
}

// runDecisions evaluates the rule table, ROI estimate and explanation for
// every customer. Evaluation fans out over a bounded worker pool writing to
// fixed slots, so the output order matches the sorted feature order
// regardless of scheduling.
func runDecisions(ctx context.Context, fs *domain.FeatureSet, segments []domain.SegmentRecord, riskRecords []domain.RiskRecord, cfg domain.PipelineConfig) ([]domain.DecisionRecord, error) {
	_, span := tracer.Start(ctx, "pipeline.decisions")
	defer span.End()

	engine, err := decision.NewEngine(cfg)
	if err != nil {
		return nil, err
	}

	segmentByID := make(map[string]domain.SegmentRecord, len(segments))
	for _, s := range segments {
		segmentByID[s.CustomerID] = s
	}
	riskByID := make(map[string]domain.RiskRecord, len(riskRecords))
	for _, r := range riskRecords {
		riskByID[r.CustomerID] = r
	}

	results := make([]domain.DecisionRecord, len(fs.Features))
	errs := make([]error, len(fs.Features))

	var wg sync.WaitGroup
	sem := make(chan struct{}, decisionWorkers)

	for i, f := range fs.Features {
		wg.Add(1)
		go func(idx int, f domain.CustomerFeatures) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx], errs[idx] = decideCustomer(engine, f, segmentByID, riskByID)
		}(i, f)
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}

func decideCustomer(engine *decision.Engine, f domain.CustomerFeatures, segments map[string]domain.SegmentRecord, riskRecords map[string]domain.RiskRecord) (domain.DecisionRecord, error) {
	segment, ok := segments[f.CustomerID]
	if !ok {
		return domain.DecisionRecord{}, fmt.Errorf("%w: no segment record for customer %s", domain.ErrMissingFeature, f.CustomerID)
	}
	riskRecord, ok := riskRecords[f.CustomerID]
	if !ok {
		return domain.DecisionRecord{}, fmt.Errorf("%w: no risk record for customer %s", domain.ErrMissingFeature, f.CustomerID)
	}

	input := decision.Input{
		CustomerID:     f.CustomerID,
		RiskLevel:      riskRecord.RiskLevel,
		RiskScore:      riskRecord.RiskScore,
		ValueSegment:   segment.ValueSegment,
		LifecycleStage: segment.LifecycleStage,
		LifetimeValue:  f.LifetimeValue,
		Monetary:       f.Monetary,
		RecencyDays:    f.RecencyDays,
		SpendTrend:     f.SpendTrend,
		FrequencyTrend: f.FrequencyTrend,
	}

	action, err := engine.Decide(input)
	if err != nil {
		return domain.DecisionRecord{}, err
	}

	return domain.DecisionRecord{
		CustomerID:  f.CustomerID,
		Action:      action,
		ROI:         engine.EstimateROI(action, f.LifetimeValue),
		Explanation: decision.Explain(input, riskRecord.Signals, action),
	}, nil
}
